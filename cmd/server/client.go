package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"djpro-audio/server/internal/client"
	"djpro-audio/server/internal/model"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed, color.Bold)
	deckColor  = color.New(color.FgCyan)
	faintColor = color.New(color.Faint)
)

func newCallCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [key=value ...]",
		Short: "Invoke a playback method on a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := client.Dial(ctx, wsURL(cfg.Server.Addr), cfg.Auth.Token)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Call(ctx, args[0], parseArgs(args[1:]))
			if err != nil {
				errColor.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
				return err
			}
			b, _ := json.Marshal(res)
			okColor.Println(string(b))
			return nil
		},
	}
}

func newListenCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print playback position events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			c, err := client.Dial(ctx, wsURL(cfg.Server.Addr), cfg.Auth.Token)
			if err != nil {
				return err
			}
			defer c.Close()

			events, err := c.Listen(ctx)
			if err != nil {
				return err
			}
			faintColor.Fprintf(os.Stderr, "listening on %s\n", model.ChannelPlaybackPosition)
			for {
				select {
				case <-ctx.Done():
					c.Cancel(context.Background())
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if ev.Type == model.EventEnd {
						faintColor.Fprintln(os.Stderr, "stream ended by server")
						return nil
					}
					fmt.Printf("%s %.3f\n", deckColor.Sprint(ev.Deck), ev.Data)
				}
			}
		},
	}
}

// wsURL turns a listen address like ":8088" into a dialable WebSocket URL.
func wsURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "ws://" + addr + "/ws"
}

// stringArgs are always sent as strings, so deck "1" stays a deck name.
var stringArgs = map[string]bool{"deck": true}

// parseArgs reads key=value pairs. Numbers and true/false are decoded, the rest stay strings.
func parseArgs(pairs []string) map[string]interface{} {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, val, _ := strings.Cut(p, "=")
		if stringArgs[k] {
			out[k] = val
			continue
		}
		switch val {
		case "true":
			out[k] = true
		case "false":
			out[k] = false
		default:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				out[k] = f
			} else {
				out[k] = val
			}
		}
	}
	return out
}
