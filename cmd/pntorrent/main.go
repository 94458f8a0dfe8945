// Command pntorrent is the BitTorrent helper binary named by env.pandora's
// pnp2p path (spec §6). It shells out to an external torrent-capable CLI
// (aria2c by default) the same way cmd/pnencode shells out to ffmpeg,
// rather than embedding a torrent-protocol library directly, and translates
// that tool's progress output into the wire protocol's progress/done/fail
// frames.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"

	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
)

const cancelPollInterval = 500 * time.Millisecond

func main() {
	fs := flag.NewFlagSet("pntorrent", flag.ExitOnError)
	opcode := fs.String("opcode", "", "local path to the fetched torrent metadata, or a magnet URI's saved text")
	save := fs.String("save", "", "directory the downloaded payload is written into")
	magnet := fs.Bool("magnet", false, "treat --opcode's contents as a magnet URI rather than .torrent bytes")
	fs.Bool("nomagnet", false, "treat --opcode as a .torrent file (default)")
	cancelFile := fs.String("cancelfile", "", "sentinel file whose appearance aborts the transfer")
	engine := fs.String("engine", "aria2c", "torrent-capable CLI binary to drive")
	negKey := fs.String("negkey", "", "negotiation key assigned by the parent process")
	negotiator := fs.String("negotiator", "", "tool name the parent process negotiates as")
	negVersion := fs.Int("negver", 1, "wire grammar version to negotiate")
	_ = fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("MEDIAFORGE"),
	); err != nil {
		glog.Fatalf("pntorrent: error parsing cli: %s", err)
	}

	self := protocol.ToolInfo{Tool: "pnp2p", Build: "dev", Version: *negVersion}
	sub, handshake, err := protocol.NewSubordinate(self, *negotiator, *negVersion, *negKey)
	if err != nil {
		glog.Fatalf("pntorrent: error negotiating: %s", err)
	}
	fmt.Println(handshake)

	if err := os.MkdirAll(*save, 0755); err != nil {
		emitFail(sub, fmt.Errorf("pntorrent: creating %s: %w", *save, err))
		os.Exit(1)
	}

	if err := run(sub, *engine, *opcode, *save, *magnet, *cancelFile); err != nil {
		glog.Errorf("pntorrent: %s", err)
		os.Exit(1)
	}
}

func run(sub *protocol.Subordinate, engine, opcode, save string, magnet bool, cancelFile string) error {
	target := opcode
	if magnet {
		contents, err := os.ReadFile(opcode)
		if err == nil && len(contents) > 0 {
			target = string(contents)
		}
	}

	args := []string{"--dir=" + save, "--seed-time=0", "--summary-interval=1", "--allow-overwrite=true"}
	if magnet {
		args = append(args, target)
	} else {
		args = append(args, "--torrent-file="+target)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, engine, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return emitFail(sub, fmt.Errorf("pntorrent: opening stdout pipe: %w", err))
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return emitFail(sub, fmt.Errorf("pntorrent: starting %s: %w", engine, err))
	}

	cancelled := make(chan struct{})
	if cancelFile != "" {
		go watchCancelFile(ctx, cancelFile, cancel, cancelled)
	}

	streamProgress(sub, stdout)

	waitErr := cmd.Wait()

	select {
	case <-cancelled:
		if line, err := sub.Message(subprocess.StatusCancelled, "cancelled"); err == nil {
			fmt.Println(line)
		}
		return nil
	default:
	}

	if waitErr != nil {
		return emitFail(sub, fmt.Errorf("pntorrent: %s exited: %w", engine, waitErr))
	}
	return emitDone(sub)
}

// watchCancelFile polls for cancelFile's appearance and cancels ctx (killing
// the child) the moment it shows up, signaling cancelled so the caller knows
// the exit was requested rather than a genuine failure.
func watchCancelFile(ctx context.Context, cancelFile string, cancel context.CancelFunc, cancelled chan<- struct{}) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(cancelFile); err == nil {
				close(cancelled)
				cancel()
				return
			}
		}
	}
}

// summaryLine matches aria2c's periodic transfer summary, e.g.
// "[#1a2b3c SIZE:1.2MiB/10MiB(12%) CN:1 SD:0 DL:100KiB ETA:1m30s]".
var summaryLine = regexp.MustCompile(`SIZE:([\d.]+)(B|KiB|MiB|GiB)/([\d.]+)(B|KiB|MiB|GiB)\((\d+)%\)`)

func streamProgress(sub *protocol.Subordinate, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		m := summaryLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		downloaded := toBytes(m[1], m[2])
		total := toBytes(m[3], m[4])
		percent := m[5]
		line, err := sub.Tuple(subprocess.StatusProgress, percent, strconv.FormatInt(downloaded, 10), strconv.FormatInt(total, 10))
		if err != nil {
			continue
		}
		fmt.Println(line)
	}
}

func toBytes(value, unit string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KiB":
		f *= 1 << 10
	case "MiB":
		f *= 1 << 20
	case "GiB":
		f *= 1 << 30
	}
	return int64(f)
}

func emitDone(sub *protocol.Subordinate) error {
	line, err := sub.Message(subprocess.StatusDone, "downloaded")
	if err != nil {
		return fmt.Errorf("pntorrent: building done frame: %w", err)
	}
	fmt.Println(line)
	return nil
}

func emitFail(sub *protocol.Subordinate, cause error) error {
	line, err := sub.Message(subprocess.StatusFail, cause.Error())
	if err != nil {
		return fmt.Errorf("pntorrent: building fail frame: %w", err)
	}
	fmt.Println(line)
	return cause
}
