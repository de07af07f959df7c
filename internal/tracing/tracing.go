// Package tracing は OpenTelemetry のトレーサープロバイダを設定する。
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"dstcore/internal/version"
)

// エクスポーター種別
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterZipkin = "zipkin"
	ExporterJaeger = "jaeger"
)

// Config はトレース出力の設定
type Config struct {
	Exporter    string    // "", "stdout", "zipkin", "jaeger"
	Endpoint    string    // zipkin / jaeger のコレクター URL
	Output      io.Writer // stdout エクスポーターの出力先（nil なら os.Stdout）
	ServiceName string    // 空なら "dstcore"
	SampleRatio float64   // 0 以下なら全件
}

// Setup は Config に従ってトレーサープロバイダを作成する
// Exporter が空ならトレースは無効で、nil を返す
func Setup(config Config) (*sdktrace.TracerProvider, error) {
	exporter, err := newExporter(config)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		return nil, nil
	}

	name := config.ServiceName
	if name == "" {
		name = "dstcore"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version.Current.String()),
	)

	sampler := sdktrace.AlwaysSample()
	if config.SampleRatio > 0 && config.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	), nil
}

func newExporter(config Config) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out))
	case ExporterZipkin:
		if config.Endpoint == "" {
			return nil, fmt.Errorf("zipkin exporter requires an endpoint")
		}
		return zipkin.New(config.Endpoint)
	case ExporterJaeger:
		if config.Endpoint == "" {
			return nil, fmt.Errorf("jaeger exporter requires an endpoint")
		}
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.Endpoint)))
	default:
		return nil, fmt.Errorf("unknown trace exporter: %s", config.Exporter)
	}
}

// Install は Setup したプロバイダをグローバルに登録し、終了処理を返す
// トレースが無効なら何もしない終了処理を返す
func Install(config Config) (func(context.Context) error, error) {
	tp, err := Setup(config)
	if err != nil {
		return nil, err
	}
	if tp == nil {
		return func(context.Context) error { return nil }, nil
	}
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
