package log

import (
	"context"
	"fmt"
	"log"
	"strings"
)

type ctxKey string

const (
	TemplateIDKey ctxKey = "TemplateID"
	LayerKey      ctxKey = "Layer"
	ConnIDKey     ctxKey = "ConnID"
)

func ctxToString(ctx context.Context) string {
	var tags []string
	if connID := ctx.Value(ConnIDKey); connID != nil {
		tags = append(tags, fmt.Sprintf("conn=%d", connID))
	}
	if templateID := ctx.Value(TemplateIDKey); templateID != nil {
		tags = append(tags, fmt.Sprintf("tmpl=%s", shortID(fmt.Sprint(templateID))))
	}
	if layer := ctx.Value(LayerKey); layer != nil {
		tags = append(tags, fmt.Sprintf("layer=%d", layer))
	}
	return fmt.Sprintf("[%s]", strings.Join(tags, ","))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func Println(l Loggable, args ...interface{}) {
	ctx := l.Ctx()
	var allArgs []interface{}
	allArgs = append(allArgs, ctxToString(ctx))
	allArgs = append(allArgs, args...)
	log.Println(allArgs...)
}

func Printf(l Loggable, format string, args ...interface{}) {
	ctx := l.Ctx()
	log.Printf("%s %s", ctxToString(ctx), fmt.Sprintf(format, args...))
}

type Loggable interface {
	Ctx() context.Context
}

// WithLayer tags ctx with a module layer index.
func WithLayer(ctx context.Context, layer int) context.Context {
	return context.WithValue(ctx, LayerKey, layer)
}

// Tagged adapts a bare context into a Loggable.
type Tagged struct {
	Context context.Context
}

func (t Tagged) Ctx() context.Context {
	return t.Context
}
