package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/telemetry"
	"github.com/chili-ocx/pepper/pkg/version"
)

// initTracing initializes the OpenTelemetry tracing system
func initTracing(ctx context.Context, cfg telemetry.Config) (telemetry.ShutdownFunc, error) {
	cfg.ServiceVersion = version.Get().Version
	return telemetry.InitTracer(ctx, cfg)
}

// traced runs f inside a "cli.command" span with tracing initialized from
// cfg. The tracer is flushed before traced returns.
func traced(cmd *cobra.Command, args []string, cfg *AppConfig, f func(ctx context.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := initTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to shut down tracer")
		}
	}()

	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
		attribute.Int("args.count", len(args)),
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		// input values may carry secrets
		if flag.Name != "input" {
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		}
	})

	return telemetry.WithSpan(ctx, "cli.command", f, attrs...)
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", telemetry.SamplerRatio, "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
