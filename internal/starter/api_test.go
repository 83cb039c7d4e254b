package starter

import (
	"context"
	"github.com/stretchr/testify/assert"
	"moff.io/frame-bridge/internal/config"
	"testing"
)

type element struct {
	name    string
	log     *[]string
	applied string
}

func (e *element) Start(ctx context.Context) {
	*e.log = append(*e.log, "start "+e.name)
}

func (e *element) Stop() {
	*e.log = append(*e.log, "stop "+e.name)
}

type configurable struct {
	element
}

func (c *configurable) Apply(conf *config.Configuration) {
	c.applied = conf.ProjectID
}

func TestStartAndStop(t *testing.T) {
	var log []string
	a := &element{name: "a", log: &log}
	b := &configurable{element{name: "b", log: &log}}

	Start(context.Background(), &config.Configuration{ProjectID: "pid"}, a, b)
	assert.Equal(t, "pid", b.applied)
	assert.Empty(t, a.applied)

	Stop(a, b)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}
