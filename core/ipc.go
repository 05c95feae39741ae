package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
)

// IPCGet asks the process listening on socket for its state
func IPCGet(socket string) (string, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString("inspect\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	if len(res) > 0 && res[len(res)-1] == 0 {
		res = res[:len(res)-1]
	}
	return res, nil
}

// ServeIPC answers inspect requests on socket with the output of dump until ctx is done
func ServeIPC(ctx context.Context, log *slog.Logger, socket string, dump func() (string, error)) error {
	_ = os.Remove(socket)
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Warn("ipc accept failed", "error", err)
				}
				return
			}
			go func() {
				defer conn.Close()
				rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
				if err := handleIPC(rw, dump); err != nil {
					log.Debug("ipc request failed", "error", err)
				}
			}()
		}
	}()
	return nil
}

func handleIPC(rw *bufio.ReadWriter, dump func() (string, error)) error {
	cmd, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	var out string
	switch cmd {
	case "inspect\n":
		out, err = dump()
		if err != nil {
			out = "error: " + err.Error() + "\n"
		}
	default:
		out = fmt.Sprintf("unknown command %q\n", cmd)
	}
	_, err = rw.WriteString(out + "\x00")
	if err != nil {
		return err
	}
	return rw.Flush()
}
