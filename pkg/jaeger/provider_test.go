package jaeger_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/absmach/fedanomaly/pkg/jaeger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cases := []struct {
		desc    string
		svcName string
		url     url.URL
		err     bool
	}{
		{desc: "empty url", svcName: "worker", url: url.URL{}, err: true},
		{desc: "empty service name", url: url.URL{Scheme: "http", Host: "localhost:4318"}, err: true},
		{desc: "unsupported scheme", svcName: "worker", url: url.URL{Scheme: "udp", Host: "localhost:4318"}, err: true},
		{desc: "http collector", svcName: "worker", url: url.URL{Scheme: "http", Host: "localhost:4318", Path: "/v1/traces"}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tp, err := jaeger.NewProvider(context.Background(), tc.svcName, tc.url, "instance", 1)
			if tc.err {
				assert.Error(t, err)
				assert.Nil(t, tp)

				return
			}
			require.NoError(t, err)
			assert.NoError(t, tp.Shutdown(context.Background()))
		})
	}
}
