package control

import (
	"context"
	"encoding/json"
	"net"
	"time"

	naaerrors "github.com/turtacn/naa/pkg/errors"
)

// Send delivers one command to a running scheduler and returns its answer.
// A response carrying an error is returned along with a coded error.
func Send(ctx context.Context, socketPath, command string) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Response{}, naaerrors.New(naaerrors.ErrCodeControlSocket, "Send", "cannot reach scheduler at "+socketPath+", is it running?", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(Request{Command: command}); err != nil {
		return Response{}, naaerrors.New(naaerrors.ErrCodeControlRequest, "Send", "cannot write request", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, naaerrors.New(naaerrors.ErrCodeControlRequest, "Send", "cannot read response", err)
	}
	if resp.Error != "" {
		return resp, naaerrors.New(naaerrors.ErrCodeControlRequest, "Send", resp.Error, nil)
	}
	return resp, nil
}

// Personal.AI order the ending
