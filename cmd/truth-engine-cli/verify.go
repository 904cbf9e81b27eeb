package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
)

var (
	flagCode string
	flagLog  string
	flagJSON bool
)

var errNotVerified = errors.New("no candidate passed verification")

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify candidate repairs for a broken program",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
	cmd.Flags().StringVar(&flagCode, "code", "", "broken program file (- for stdin)")
	cmd.Flags().StringVar(&flagLog, "log", "", "error log file (- for stdin)")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print the final result as json")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("log")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	if flagCode == "-" && flagLog == "-" {
		return errors.New("only one of --code and --log may read stdin")
	}
	code, err := readInput(cmd.InOrStdin(), flagCode)
	if err != nil {
		return err
	}
	errorLog, err := readInput(cmd.InOrStdin(), flagLog)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	p := &printer{out: out, color: isTerminal(out)}
	result, err := stream(ctx, wsURL(flagServer), flagToken, model.Request{Code: code, ErrorLog: errorLog}, p.event)
	if err != nil {
		return err
	}
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		p.result(result)
	}
	if result.Status != "success" {
		return errNotVerified
	}
	return nil
}

func readInput(stdin io.Reader, name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

// wsURL converts the server address to the stream endpoint
func wsURL(server string) string {
	server = strings.TrimSuffix(server, "/")
	switch {
	case strings.HasPrefix(server, "https://"):
		server = "wss://" + strings.TrimPrefix(server, "https://")
	case strings.HasPrefix(server, "http://"):
		server = "ws://" + strings.TrimPrefix(server, "http://")
	case !strings.HasPrefix(server, "ws://") && !strings.HasPrefix(server, "wss://"):
		server = "ws://" + server
	}
	return server + "/ws"
}

// stream sends the request and reports events until the result arrives.
// When ctx is done a cancel message is sent and the server still answers
// with the final result.
func stream(ctx context.Context, url, token string, req model.Request, onEvent func(model.Event)) (*model.Result, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(model.ClientMessage{Request: req}); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteJSON(model.ClientMessage{Cancel: true})
		case <-done:
		}
	}()

	for {
		var m model.StreamMessage
		if err := conn.ReadJSON(&m); err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		switch m.Type {
		case model.MessageEvent:
			if m.Event != nil {
				onEvent(*m.Event)
			}
		case model.MessageResult:
			if m.Result == nil {
				return nil, errors.New("empty result")
			}
			return m.Result, nil
		case model.MessageError:
			return nil, fmt.Errorf("server: %s", m.Error)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

type printer struct {
	out   io.Writer
	color bool
}

func (p *printer) paint(c, s string) string {
	if !p.color {
		return s
	}
	return c + s + colorReset
}

func (p *printer) event(e model.Event) {
	text := e.Text
	switch e.Marker {
	case "pass":
		text = p.paint(colorGreen, text)
	case "fail":
		text = p.paint(colorRed, text)
	case "progress":
		text = p.paint(colorYellow, text)
	}
	fmt.Fprintf(p.out, "[%s] %-8s %s\n", e.Time.Format("15:04:05.000"), e.Stage, text)
}

func (p *printer) result(r *model.Result) {
	fmt.Fprintf(p.out, "\nError type: %s", r.ErrorType.Category)
	if r.ErrorType.Exception != "" {
		fmt.Fprintf(p.out, " (%s)", r.ErrorType.Exception)
	}
	fmt.Fprintln(p.out)
	if r.Winner == nil {
		reason := r.Reason
		if reason == "" {
			reason = "unknown"
		}
		fmt.Fprintln(p.out, p.paint(colorRed, "Not verified: "+reason))
		return
	}
	fmt.Fprintln(p.out, p.paint(colorGreen, fmt.Sprintf("Verified fix (candidate #%d from %s):", r.Winner.Rank+1, r.Source)))
	fmt.Fprintln(p.out, r.Winner.Source)
}
