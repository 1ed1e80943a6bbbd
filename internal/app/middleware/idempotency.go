package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"karta/internal/app/commands"
)

// IdempotentCommand marks a command whose result may be replayed when
// the same key is dispatched again.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays a stored result for commands carrying a key the
// store has already seen. Only successes are stored: a failed command
// made no durable write, so a retry re-runs the handler and keeps the
// original error's sentinel identity instead of a flattened copy.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	layer := idempotencyLayer{store: store, codec: codec}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			return layer.dispatch(ctx, idCmd, nextFn)
		})
	}
}

type idempotencyLayer struct {
	store IdempotencyStore
	codec ResultCodec
}

func (l idempotencyLayer) dispatch(ctx context.Context, cmd IdempotentCommand, next commandFunc) (any, error) {
	key := cmd.IdempotencyKey()
	rec, found, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return l.replay(cmd, rec)
	}
	result, err := next(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if recErr := l.record(ctx, key, result); recErr != nil {
		return nil, recErr
	}
	return result, nil
}

func (l idempotencyLayer) replay(cmd IdempotentCommand, rec IdempotencyRecord) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := l.codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func (l idempotencyLayer) record(ctx context.Context, key string, result any) error {
	rec := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if result != nil {
		payload, err := l.codec.Encode(result)
		if err != nil {
			return err
		}
		rec.Payload = payload
	}
	return l.store.Save(ctx, rec)
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
