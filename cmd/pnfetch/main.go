// Command pnfetch is the HTTP-fetch/cloud-upload helper binary named by
// env.pandora's pncurl path (spec §6). In its plain mode it downloads --link
// to the local path named by --opcode. With --drive it instead treats --link
// as a local file and --opcode as the file name to store it under in the
// cloud bucket named by env.pandora's upload URL, uploading through
// uploadclient and reporting the presigned link back as its done frame's
// payload.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/peterbourgon/ff/v3"

	"github.com/relayforge/mediaforge/envstore"
	pnerrors "github.com/relayforge/mediaforge/errors"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
	"github.com/relayforge/mediaforge/uploadclient"
)

const fetchTimeout = 2 * time.Minute

func main() {
	fs := flag.NewFlagSet("pnfetch", flag.ExitOnError)
	link := fs.String("link", "", "source URL to fetch, or local file path to upload with --drive")
	opcode := fs.String("opcode", "", "destination file path, or destination file name in the cloud bucket with --drive")
	drive := fs.Bool("drive", false, "upload --link to the cloud bucket from env.pandora under the name --opcode instead of fetching it")
	envFile := fs.String("env", "env.pandora", "path to env.pandora, read for the cloud-bucket destination under --drive")
	negKey := fs.String("negkey", "", "negotiation key assigned by the parent process")
	negotiator := fs.String("negotiator", "", "tool name the parent process negotiates as")
	negVersion := fs.Int("negver", 1, "wire grammar version to negotiate")
	_ = fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("MEDIAFORGE"),
	); err != nil {
		glog.Fatalf("pnfetch: error parsing cli: %s", err)
	}

	self := protocol.ToolInfo{Tool: "pncurl", Build: "dev", Version: *negVersion}
	sub, handshake, err := protocol.NewSubordinate(self, *negotiator, *negVersion, *negKey)
	if err != nil {
		glog.Fatalf("pnfetch: error negotiating: %s", err)
	}
	fmt.Println(handshake)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var runErr error
	if *drive {
		runErr = runUpload(ctx, sub, *envFile, *link, *opcode)
	} else {
		runErr = runFetch(ctx, sub, *link, *opcode)
	}
	if runErr != nil {
		glog.Errorf("pnfetch: %s", runErr)
		os.Exit(1)
	}
}

// runFetch downloads url to path, retrying the same way fetchclient.Client
// does (retryablehttp plus a bounded backoff.Retry wrapper), then emits a
// bare-message done frame.
func runFetch(ctx context.Context, sub *protocol.Subordinate, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return emitFail(sub, fmt.Errorf("pnfetch: creating %s: %w", filepath.Dir(path), err))
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	client := rc.StandardClient()

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(pnerrors.Unretriable(fmt.Errorf("pnfetch: building request: %w", err)))
		}
		res, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("pnfetch: requesting %s: %w", url, err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 300 {
			err := fmt.Errorf("pnfetch: bad status from %s: %d", url, res.StatusCode)
			if res.StatusCode < 500 {
				return backoff.Permanent(pnerrors.Unretriable(err))
			}
			return err
		}

		out, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("pnfetch: creating %s: %w", path, err))
		}
		defer out.Close()

		_, err = io.Copy(out, res.Body)
		return err
	}

	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, boff); err != nil {
		return emitFail(sub, err)
	}
	return emitDone(sub, "fetched")
}

// runUpload uploads the local file at localPath to the cloud destination
// recorded as the upload URL in env.pandora, storing it under the file name
// opcode (or localPath's base name when opcode is empty).
func runUpload(ctx context.Context, sub *protocol.Subordinate, envFile, localPath, opcode string) error {
	env := envstore.New(filepath.Dir(envFile))
	destination, err := env.EnvValue(envstore.EnvUploadURL)
	if err != nil || destination == "" {
		return emitFail(sub, fmt.Errorf("pnfetch: no upload destination configured"))
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return emitFail(sub, fmt.Errorf("pnfetch: stat %s: %w", localPath, err))
	}
	if line, err := sub.Tuple(subprocess.StatusProgress, "0", fmt.Sprintf("%d", info.Size())); err == nil {
		fmt.Println(line)
	}

	filename := opcode
	if filename == "" {
		filename = filepath.Base(localPath)
	}
	link, err := uploadclient.New().Upload(ctx, localPath, destination, filename)
	if err != nil {
		return emitFail(sub, err)
	}

	if line, err := sub.Tuple(subprocess.StatusProgress, fmt.Sprintf("%d", info.Size()), fmt.Sprintf("%d", info.Size())); err == nil {
		fmt.Println(line)
	}

	return emitDone(sub, link)
}

func emitDone(sub *protocol.Subordinate, message string) error {
	line, err := sub.Message(subprocess.StatusDone, message)
	if err != nil {
		return fmt.Errorf("pnfetch: building done frame: %w", err)
	}
	fmt.Println(line)
	return nil
}

func emitFail(sub *protocol.Subordinate, cause error) error {
	line, err := sub.Message(subprocess.StatusFail, cause.Error())
	if err != nil {
		return fmt.Errorf("pnfetch: building fail frame: %w", err)
	}
	fmt.Println(line)
	return cause
}
