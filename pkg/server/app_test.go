package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/pkg/config"
	xhttp "chartfeed/pkg/http"
	applogger "chartfeed/pkg/logger"
)

func TestRunContextClosesInReverseOrder(t *testing.T) {
	cfg := config.Default()
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics(false, 0))
	app := New(cfg, applogger.Nop(), srv)

	var order []string
	app.AddCloser("store", func() error { order = append(order, "store"); return nil })
	app.AddCloser("events", func() error { order = append(order, "events"); return errors.New("flush failed") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, app.RunContext(ctx))
	assert.Equal(t, []string{"events", "store"}, order)
}
