// carectl is the operator CLI: compute the canonical content hash of a
// record export offline, or check a hash against a running server's
// ledger.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"carevault/pkg/recordhash"
)

const usage = "usage: carectl hash --record <path> | carectl verify --hash <digest> [--server <base-url>] [--token <bearer>]"

func main() {
	if len(os.Args) < 2 {
		fail(usage)
	}
	switch os.Args[1] {
	case "hash":
		runHash(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		fail(usage)
	}
}

func runHash(args []string) {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	recordPath := fs.String("record", "", "path to a record export json")
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
	if strings.TrimSpace(*recordPath) == "" {
		fail("--record is required")
	}

	raw, err := os.ReadFile(*recordPath)
	if err != nil {
		fail("read record failed: " + err.Error())
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		fail("record is not valid json: " + err.Error())
	}
	digest, err := recordhash.Sum(fields)
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(digest)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	hash := fs.String("hash", "", "64-char hex sha-256 digest")
	server := fs.String("server", "http://localhost:8080", "server base url")
	token := fs.String("token", "", "bearer token")
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
	digest := strings.ToLower(strings.TrimSpace(*hash))
	if !recordhash.IsDigest(digest) {
		fail("--hash must be a 64-char hex sha-256 digest")
	}

	body, _ := json.Marshal(map[string]string{"hash": digest})
	req, err := http.NewRequest("POST", strings.TrimRight(*server, "/")+"/api/ledger/verify", strings.NewReader(string(body)))
	if err != nil {
		fail(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(*token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(*token))
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fail("verify request failed: " + err.Error())
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var out struct {
		Verified bool `json:"verified"`
		Ledger   struct {
			Kind   string `json:"ledger_kind"`
			TxRef  string `json:"transaction_ref"`
			Status string `json:"status"`
		} `json:"ledger"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(respBody, &out)

	switch {
	case resp.StatusCode == 200 && out.Verified:
		fmt.Printf("VERIFIED hash=%s ledger=%s tx=%s status=%s\n", digest, out.Ledger.Kind, out.Ledger.TxRef, out.Ledger.Status)
	case resp.StatusCode == 200:
		fmt.Printf("NOT VERIFIED hash=%s ledger=%s tx=%s status=%s\n", digest, out.Ledger.Kind, out.Ledger.TxRef, out.Ledger.Status)
		os.Exit(1)
	case out.Error.Code != "":
		fail(out.Error.Code + ": " + out.Error.Message)
	default:
		fail(fmt.Sprintf("unexpected response status %d", resp.StatusCode))
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "carectl: "+msg)
	os.Exit(2)
}
