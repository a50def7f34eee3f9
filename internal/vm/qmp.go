package vm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"idlepower/internal/logging"
)

// DefaultQMPSocketGlob matches Proxmox's per-guest QMP sockets
const DefaultQMPSocketGlob = "/var/run/qemu-server/*.qmp"

type qmpCommand struct {
	Execute   string                 `json:"execute"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	ID        string                 `json:"id"`
}

type qmpError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

type qmpMessage struct {
	QMP    json.RawMessage `json:"QMP,omitempty"`
	Event  string          `json:"event,omitempty"`
	ID     string          `json:"id,omitempty"`
	Return json.RawMessage `json:"return,omitempty"`
	Error  *qmpError       `json:"error,omitempty"`
}

type qmpStatus struct {
	Running bool   `json:"running"`
	Status  string `json:"status"`
}

// QMPController talks to QEMU monitor sockets directly. Each guest's id is
// the socket's base name without extension.
type QMPController struct {
	glob   string
	logger *logging.Logger
	dial   func(ctx context.Context, path string) (net.Conn, error)
}

// NewQMPController creates a controller over sockets matching glob
func NewQMPController(glob string, logger *logging.Logger) *QMPController {
	if glob == "" {
		glob = DefaultQMPSocketGlob
	}
	return &QMPController{
		glob:   glob,
		logger: logger,
		dial: func(ctx context.Context, path string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
}

// ListRunning queries every socket. A socket that cannot be queried leaves
// the guest's state unknown, so it fails the whole listing.
func (q *QMPController) ListRunning(ctx context.Context) ([]string, error) {
	paths, err := filepath.Glob(q.glob)
	if err != nil {
		return nil, fmt.Errorf("invalid qmp socket glob %q: %w", q.glob, err)
	}

	ids := make([]string, 0, len(paths))
	var unreachable []error
	for _, path := range paths {
		id := socketID(path)
		running, err := q.IsRunning(ctx, id)
		if err != nil {
			q.logger.Warn("vm.qmp.unreachable", "QMP socket unreachable, guest state unknown", map[string]interface{}{
				"vm":    id,
				"path":  path,
				"error": err.Error(),
			})
			unreachable = append(unreachable, err)
			continue
		}
		if running {
			ids = append(ids, id)
		}
	}

	if len(unreachable) > 0 {
		return nil, fmt.Errorf("%d of %d qmp sockets unreachable: %w", len(unreachable), len(paths), errors.Join(unreachable...))
	}

	sort.Strings(ids)
	return ids, nil
}

// Suspend pauses the guest's vCPUs with the `stop` command
func (q *QMPController) Suspend(ctx context.Context, id string) error {
	if _, err := q.execute(ctx, id, "stop"); err != nil {
		return fmt.Errorf("qmp stop %s: %w", id, err)
	}
	return nil
}

// IsRunning issues `query-status`
func (q *QMPController) IsRunning(ctx context.Context, id string) (bool, error) {
	raw, err := q.execute(ctx, id, "query-status")
	if err != nil {
		return false, fmt.Errorf("qmp query-status %s: %w", id, err)
	}

	var status qmpStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return false, fmt.Errorf("qmp query-status %s: invalid response: %w", id, err)
	}
	return status.Running, nil
}

func (q *QMPController) socketPath(id string) string {
	if strings.Contains(q.glob, "*") {
		return strings.Replace(q.glob, "*", id, 1)
	}
	return filepath.Join(filepath.Dir(q.glob), id+".qmp")
}

func socketID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// execute opens a session, negotiates capabilities and runs one command
func (q *QMPController) execute(ctx context.Context, id, execute string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	conn, err := q.dial(ctx, q.socketPath(id))
	if err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	reader := bufio.NewReader(conn)

	var greeting qmpMessage
	if err := readMessage(reader, &greeting); err != nil {
		return nil, fmt.Errorf("greeting read failed: %w", err)
	}
	if greeting.QMP == nil {
		return nil, fmt.Errorf("invalid greeting")
	}

	if _, err := roundTrip(conn, reader, "qmp_capabilities"); err != nil {
		return nil, err
	}
	return roundTrip(conn, reader, execute)
}

func roundTrip(conn net.Conn, reader *bufio.Reader, execute string) (json.RawMessage, error) {
	cmd := qmpCommand{Execute: execute, ID: uuid.New().String()}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send %s: %w", execute, err)
	}

	for {
		var msg qmpMessage
		if err := readMessage(reader, &msg); err != nil {
			return nil, fmt.Errorf("%s response read failed: %w", execute, err)
		}
		if msg.Event != "" || msg.ID != cmd.ID {
			continue // asynchronous events (STOP, RESUME, ...)
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %s: %s", execute, msg.Error.Class, msg.Error.Desc)
		}
		return msg.Return, nil
	}
}

func readMessage(reader *bufio.Reader, msg *qmpMessage) error {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}
