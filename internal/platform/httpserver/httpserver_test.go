package httpserver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
)

func TestNew(t *testing.T) {
	h := http.NotFoundHandler()
	srv := New(config.Server{Addr: ":9090"}, h)

	assert.Equal(t, ":9090", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Positive(t, srv.ReadHeaderTimeout)
	assert.Positive(t, srv.WriteTimeout)
	assert.Equal(t, 64<<10, srv.MaxHeaderBytes)
}
