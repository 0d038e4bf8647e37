package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	do(http.MethodGet, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/state", nil)
}

func nodesCmd(args []string) {
	fs := flag.NewFlagSet("nodes", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	at := fs.String("at", "", "cell x,y (optional; default all nodes)")
	belts := fs.Bool("belts", false, "include belt item progress")
	_ = fs.Parse(args)

	q := url.Values{}
	if strings.TrimSpace(*at) != "" {
		v, err := parseVec2(*at)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		q.Set("x", fmt.Sprint(v[0]))
		q.Set("y", fmt.Sprint(v[1]))
	}
	if *belts {
		q.Set("belts", "1")
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/nodes"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	do(http.MethodGet, u, nil)
}

// commandsCmd posts a JSON command (or array of commands) read from -file or stdin.
func commandsCmd(args []string) {
	fs := flag.NewFlagSet("cmd", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	file := fs.String("file", "-", "JSON file with one command or an array (- for stdin)")
	_ = fs.Parse(args)

	var body []byte
	var err error
	if *file == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*file)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	do(http.MethodPost, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/commands", body)
}

func do(method, u string, body []byte) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
