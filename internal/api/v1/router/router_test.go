package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pitchside/internal/config"
	"pitchside/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(observe(m))
	r.Get("/players/{playerId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/players/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/players/{playerId}", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRemoveDisableGzip(t *testing.T) {
	stack := awsmiddleware.NewStack("test", nil)
	require.NoError(t, stack.Finalize.Add(awsmiddleware.FinalizeMiddlewareFunc("DisableAcceptEncodingGzip",
		func(ctx context.Context, in awsmiddleware.FinalizeInput, next awsmiddleware.FinalizeHandler) (awsmiddleware.FinalizeOutput, awsmiddleware.Metadata, error) {
			return next.HandleFinalize(ctx, in)
		}), awsmiddleware.After))

	require.NoError(t, removeDisableGzip()(stack))
	_, ok := stack.Finalize.Get("DisableAcceptEncodingGzip")
	assert.False(t, ok)

	// absent middleware is not an error
	require.NoError(t, removeDisableGzip()(stack))
}

func TestNewS3Client(t *testing.T) {
	cfg := &config.Config{
		S3URL:       "https://project.supabase.co/storage/v1/s3",
		S3Region:    "eu-central-1",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	}
	client, err := NewS3Client(context.Background(), cfg)
	require.NoError(t, err)

	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, cfg.S3URL, *opts.BaseEndpoint)
	assert.Equal(t, "eu-central-1", opts.Region)
	_ = s3.NewPresignClient(client)
}
