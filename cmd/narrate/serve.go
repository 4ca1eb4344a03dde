package main

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/Veraticus/narration-resolver/internal/certs"
	"github.com/Veraticus/narration-resolver/internal/config"
	"github.com/Veraticus/narration-resolver/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolver over HTTP",
		Long: `Serve the resolver over HTTP until interrupted.

Endpoints:
  GET  /health          readiness and loaded counts
  POST /predict         {"description": "..."}
  POST /predict/batch   ["...", "..."]
  POST /feedback        {"description": "...", "correct_category": "..."}

With --tls a self-signed certificate is created under server.cert_dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:5000)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	srv := server.New(server.Deps{
		Resolver:    a.resolver,
		Corrections: a.corrections,
		Index:       a.corrections,
		Keywords:    a.matcher,
		Classifier:  a.classifier,
	},
		server.WithBatchOptions(a.batchOptions()),
		server.WithMaxBodyBytes(a.cfg.Server.MaxBodyBytes),
	)

	tlsConfig, err := serverTLS(a.cfg.Server)
	if err != nil {
		return err
	}

	slog.Info("Resolver ready",
		"keywords", a.matcher.Len(),
		"corrections", a.corrections.Len(),
		"classifier", a.classifier.Name(),
		"classifier_ready", a.classifier.Ready())

	return srv.ListenAndServe(ctx, a.cfg.Server.Addr, tlsConfig)
}

func serverTLS(cfg config.ServerConfig) (*tls.Config, error) {
	if !cfg.TLS {
		return nil, nil
	}
	store := certs.NewStore(cfg.CertDir, certs.WithHosts(cfg.Hosts...))
	tlsConfig, err := store.TLSConfig()
	if err != nil {
		return nil, err
	}
	slog.Info("Using TLS certificate", "path", store.CertFile())
	return tlsConfig, nil
}
