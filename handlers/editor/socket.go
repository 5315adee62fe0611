package editor

import (
	"context"
	"fmt"
	"reflect"

	"tag-designer/config"
	"tag-designer/core"
	designer "tag-designer/editor"
	"tag-designer/middleware"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

// Handler opens one editor session per socket, scoped to the user whose
// token came with open-session.
type Handler struct {
	tokens   middleware.TokenParser
	store    core.TemplateStore
	exporter designer.Exporter
	cfg      config.Editor
	log      *logrus.Entry
}

func NewHandler(tokens middleware.TokenParser, store core.TemplateStore, exporter designer.Exporter, cfg config.Editor) *Handler {
	return &Handler{
		tokens:   tokens,
		store:    store,
		exporter: exporter,
		cfg:      cfg,
		log:      logrus.WithField("component", "socket"),
	}
}

func (h *Handler) newConn(id string, emit func(event string, args ...any) error) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		h:      h,
		emit:   emit,
		log:    h.log.WithField("socket_id", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetupSocketIO builds the socket.io server. origins follows the CORS
// setting of the HTTP router; a single "*" allows any origin.
func SetupSocketIO(h *Handler, origins []string) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin(origins),
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		c := h.newConn(string(socket.Id()), socket.Emit)
		c.log.Debug("Socket connected")

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(eventOpenSession, func(datas ...any) {
			c.handle(eventOpenSession, datas)
		})

		for name := range events {
			//nolint:errcheck // Socket.IO event handlers do not return useful errors
			socket.On(name, func(datas ...any) {
				c.handle(name, datas)
			})
		}

		socket.On("disconnect", func(datas ...any) {
			c.close()
			c.log.Debug("Socket disconnected")
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

func corsOrigin(origins []string) any {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return "*"
	}
	out := make([]any, len(origins))
	for i, o := range origins {
		out[i] = o
	}
	return out
}

// extractAck splits the trailing acknowledgement callback, if the client
// sent one, off the event arguments.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}
	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(buildAckArgs(typ, err, payload))
	}
}

// buildAckArgs fills the callback's parameters: a single parameter gets
// the payload, or the error when there is one; with two or more the first
// is the error and the second the payload.
func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	if typ.IsVariadic() {
		numIn--
	}
	args := make([]reflect.Value, numIn)
	for i := range args {
		var v any
		switch {
		case numIn == 1 && err != nil:
			v = err
		case numIn == 1:
			v = payload
		case i == 0:
			v = err
		case i == 1:
			v = payload
		}
		args[i] = coerceValue(v, typ.In(i))
	}
	if typ.IsVariadic() {
		args = append(args, coerceValue(payload, typ.In(numIn).Elem()))
	}
	return args
}

func coerceValue(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case target.Kind() == reflect.Interface && target.NumMethod() == 0:
		return rv
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	case target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Interface:
		return reflect.ValueOf([]any{value})
	}
	return reflect.Zero(target)
}

func respondWithAck(ack ackInvoker, payload map[string]any, err error) {
	if ack == nil {
		return
	}
	if err != nil {
		ack(err, map[string]any{
			"status": "error",
			"error":  err.Error(),
			"code":   errorCode(err),
		})
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = "ok"
	ack(nil, payload)
}
