package resilience

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closeRecorder struct {
	closed bool
}

func (c *closeRecorder) Read(_ []byte) (int, error) { return 0, io.EOF }
func (c *closeRecorder) Close() error               { c.closed = true; return nil }

func TestReplaceLastRespClosesSuperseded(t *testing.T) {
	first := &closeRecorder{}
	second := &closeRecorder{}

	last := &http.Response{Body: first}
	next := &http.Response{Body: second}

	replaceLastResp(&last, next)
	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.Same(t, next, last)

	// Swapping in the same response again must not close it.
	replaceLastResp(&last, next)
	assert.False(t, second.closed)
}

func TestReplaceLastRespFromNil(t *testing.T) {
	body := &closeRecorder{}
	var last *http.Response

	replaceLastResp(&last, &http.Response{Body: body})
	assert.False(t, body.closed)
	assert.NotNil(t, last)
}
