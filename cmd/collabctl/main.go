package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/thinhng24/CollabSphere-sub001/internal/daemon"
	"github.com/thinhng24/CollabSphere-sub001/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := socketClient(session.SocketPath(sessionName))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, sessionName, *jsonFlag)
	case "login":
		cmdLogin(ctx, c, sessionName, args[1:])
	case "logout":
		cmdLogout(ctx, c, sessionName)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: collabctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status           Show session status")
	fmt.Fprintln(os.Stderr, "  login <email>    Authenticate the session (prompts for password)")
	fmt.Fprintln(os.Stderr, "  logout           End the session and forget credentials")
}

func socketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

func cmdStatus(ctx context.Context, c *http.Client, sessionName string, jsonOut bool) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://daemon/v1/status", nil)
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	var st daemon.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Fprintf(os.Stderr, "error: bad reply from daemon: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("Session:        %s\n", st.Session)
	fmt.Printf("Push channel:   %s\n", st.PushState)
	fmt.Printf("Authenticated:  %v\n", st.Authenticated)
	fmt.Printf("Conversations:  %d\n", st.Conversations)
	fmt.Printf("Daemon PID:     %d\n", st.PID)
}

func cmdLogin(ctx context.Context, c *http.Client, sessionName string, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: collabctl login <email>")
		os.Exit(1)
	}
	email := args[0]

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading password: %v\n", err)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"email": email, "password": string(password)})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "http://daemon/v1/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		fmt.Fprintf(os.Stderr, "login failed: %s\n", readError(resp.Body))
		os.Exit(1)
	}
	fmt.Println("Logged in.")
}

func cmdLogout(ctx context.Context, c *http.Client, sessionName string) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "http://daemon/v1/logout", nil)
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		fmt.Fprintf(os.Stderr, "logout failed: %s\n", readError(resp.Body))
		os.Exit(1)
	}
	fmt.Println("Logged out.")
}

func readError(r io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&e); err != nil || e.Error == "" {
		return "unknown error"
	}
	return e.Error
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
