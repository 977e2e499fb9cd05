package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"djpro-audio/server/config"
	"djpro-audio/server/internal/api"
	"djpro-audio/server/internal/app"
	"djpro-audio/server/internal/dispatch"
	"djpro-audio/server/internal/engine"
	"djpro-audio/server/internal/model"
	"djpro-audio/server/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	v := config.New()
	root := &cobra.Command{
		Use:           "djpro-bridge",
		Short:         "Playback command and position stream bridge for the DJ Pro UI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("addr", ":8088", "server listen address")
	root.PersistentFlags().String("token", "", "auth token")
	v.BindPFlag("server.addr", root.PersistentFlags().Lookup("addr"))
	v.BindPFlag("auth.token", root.PersistentFlags().Lookup("token"))

	serveCmd := newServeCmd(v)
	root.AddCommand(serveCmd, newCallCmd(v), newListenCmd(v))
	root.RunE = serveCmd.RunE

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(v, path)
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gin.SetMode(cfg.Server.Mode)

	overflow, err := stream.ParseOverflow(cfg.Stream.Overflow)
	if err != nil {
		return err
	}

	// 1. Engine
	log.Println("Initializing stub audio engine...")
	eng := engine.NewStub(nil)

	// 2. Position stream bridge
	log.Printf("Initializing position stream (every %v, buffer %d, %s)...",
		cfg.Stream.Interval, cfg.Stream.Buffer, overflow)
	bridge := stream.NewBridge(cfg.Stream.Buffer, overflow)

	// 3. Application Service
	svc := app.NewService(eng, bridge, dispatch.Defaults{
		Missing:   model.Deck(cfg.Dispatch.MissingDeck),
		WrongType: model.Deck(cfg.Dispatch.WrongTypeDeck),
	})

	// 4. HTTP + WebSocket
	h := api.NewHandler(svc, cfg)
	server := &http.Server{Addr: cfg.Server.Addr, Handler: h.NewRouter()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bridge.Run(ctx, eng.Positions(ctx, cfg.Stream.Interval))
		return nil
	})
	g.Go(func() error {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
