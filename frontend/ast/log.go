package ast

import (
	"context"
	"log/slog"
)

// Slog wraps a Node as a slog.LogValuer to not render source strings
// unless they definitely need to be logged
func Slog(node Node) slog.LogValuer {
	return nodeLogValuer{node}
}

type nodeLogValuer struct{ Node }

func (l nodeLogValuer) LogValue() slog.Value {
	switch n := l.Node.(type) {
	case Expr:
		return slog.StringValue(ExprString(n))
	case Stmt:
		return slog.StringValue(StmtString(n))
	case *Function:
		return slog.StringValue(n.Name)
	}
	return slog.AnyValue(l.Node)
}

// ExprHandler is a slog.Handler capable of lazy-printing syntax trees
func ExprHandler(underlying slog.Handler) slog.Handler {
	return &exprLogHandler{underlying: underlying}
}

func ExprLogger(underlying *slog.Logger) *slog.Logger {
	return slog.New(ExprHandler(underlying.Handler()))
}

type exprLogHandler struct {
	underlying slog.Handler
}

func (l *exprLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *exprLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	// for each attr, add it wrapped in Slog if it is an Any and then a Node
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Value.Kind() == slog.KindAny {
			if asNode, isNode := attr.Value.Any().(Node); isNode {
				newRecord.Add(attr.Key, Slog(asNode))
				return true
			}
		}
		newRecord.Add(attr)
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *exprLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// replace attrs with Slog attrs if they are Nodes
	for i, attr := range attrs {
		if attr.Value.Kind() == slog.KindAny {
			if asNode, isNode := attr.Value.Any().(Node); isNode {
				attr.Value = slog.AnyValue(Slog(asNode))
				attrs[i] = attr
			}
		}
	}
	return ExprHandler(l.underlying.WithAttrs(attrs))
}

func (l *exprLogHandler) WithGroup(name string) slog.Handler {
	return ExprHandler(l.underlying.WithGroup(name))
}
