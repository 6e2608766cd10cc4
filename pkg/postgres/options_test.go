package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	p := defaultPool

	for _, opt := range []Option{
		WithConnMaxIdleTime(time.Minute),
		WithConnMaxLifetime(time.Hour),
		WithMaxIdleConns(2),
		WithMaxOpenConns(10),
	} {
		opt(&p)
	}

	assert.Equal(t, pool{
		maxIdleTime: time.Minute,
		maxLifetime: time.Hour,
		maxIdle:     2,
		maxOpen:     10,
	}, p)
}

func TestOptions_ZeroKeepsDefault(t *testing.T) {
	p := defaultPool

	for _, opt := range []Option{
		WithConnMaxIdleTime(0),
		WithConnMaxLifetime(0),
		WithMaxIdleConns(0),
		WithMaxOpenConns(-1),
	} {
		opt(&p)
	}

	assert.Equal(t, defaultPool, p)
}
