// Command pnencode is the encoder helper binary named by env.pandora's
// pnmpeg path (spec §6). It shells out to ffmpeg/ffprobe the same way
// five82-reel's encoder package wraps SvtAv1EncApp, rather than embedding an
// encoding library, and translates ffmpeg's stderr progress text into the
// wire protocol's progress/done/fail frames.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"

	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
)

const defaultLanguage = "jpn"

func main() {
	fs := flag.NewFlagSet("pnencode", flag.ExitOnError)
	input := fs.String("input", "", "source video path")
	output := fs.String("output", "", "destination video path")
	ass := fs.String("ass", "", "subtitle file to burn in (pass 1 only)")
	subinput := fs.String("subinput", "", "canned intro clip prepended by the concat pass")
	concat := fs.Bool("concat", false, "run the concat pass instead of pass 1")
	x264 := fs.Bool("x264", false, "encode with the CPU_SANE_DEFAULTS bundle")
	gpu := fs.Bool("gpu", false, "encode with the GPU_SANE_DEFAULTS bundle")
	pseudolossless := fs.Bool("pseudolossless", false, "encode with the CPU_PSEUDOLOSSLESS bundle")
	lang := fs.String("lang", defaultLanguage, "ISO 639-2 audio language to select")
	negKey := fs.String("negkey", "", "negotiation key assigned by the parent process")
	negotiator := fs.String("negotiator", "", "tool name the parent process negotiates as")
	negVersion := fs.Int("negver", 1, "wire grammar version to negotiate")
	_ = fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("MEDIAFORGE"),
	); err != nil {
		glog.Fatalf("pnencode: error parsing cli: %s", err)
	}

	self := protocol.ToolInfo{Tool: "pnmpeg", Build: "dev", Version: *negVersion}
	sub, handshake, err := protocol.NewSubordinate(self, *negotiator, *negVersion, *negKey)
	if err != nil {
		glog.Fatalf("pnencode: error negotiating: %s", err)
	}
	fmt.Println(handshake)

	var runErr error
	if *concat {
		runErr = runConcat(sub, *input, *subinput, *output)
	} else {
		runErr = runPass1(sub, *input, *output, *ass, *lang, presetBundle(*pseudolossless, *gpu))
		_ = x264
	}
	if runErr != nil {
		glog.Errorf("pnencode: %s", runErr)
		os.Exit(1)
	}
}

// bundle is one of CPU_SANE_DEFAULTS, CPU_PSEUDOLOSSLESS or
// GPU_SANE_DEFAULTS (spec §4.5): a fixed set of ffmpeg codec/quality flags
// selected by the CLI layer, opaque to the worker above it.
type bundle []string

func presetBundle(pseudolossless, gpu bool) bundle {
	switch {
	case pseudolossless:
		return bundle{"-c:v", "libx264", "-preset", "veryslow", "-crf", "0", "-c:a", "flac"}
	case gpu:
		return bundle{"-c:v", "h264_nvenc", "-preset", "p5", "-rc", "vbr", "-cq", "20", "-c:a", "aac", "-b:a", "192k"}
	default:
		return bundle{"-c:v", "libx264", "-preset", "medium", "-crf", "20", "-c:a", "aac", "-b:a", "192k"}
	}
}

// runPass1 probes the audio track matching lang, then invokes ffmpeg with
// the selected bundle and, if ass names an existing subtitle file, burns it
// in via the ass filter. A pass-1 done frame carries no payload the worker
// above it reads (spec §4.5).
func runPass1(sub *protocol.Subordinate, input, output, ass, lang string, preset bundle) error {
	audioIdx, err := probeAudioStream(input, lang)
	if err != nil {
		return emitFail(sub, fmt.Errorf("pnencode: no %s audio track in %s: %w", lang, input, err))
	}

	totalFrames := probeFrameCount(input)

	args := []string{"-y", "-i", input, "-map", "0:v:0", "-map", fmt.Sprintf("0:%d", audioIdx)}
	if ass != "" {
		if _, err := os.Stat(ass); err == nil {
			args = append(args, "-vf", "ass="+ass)
		}
	}
	args = append(args, preset...)
	args = append(args, output)

	if err := runFfmpeg(sub, args, totalFrames); err != nil {
		return emitFail(sub, err)
	}
	return emitDone(sub, "pass 1 complete")
}

// runConcat prepends subinput (the canned intro) to input (pass 1's output)
// via ffmpeg's concat filter, matching spec §4.5's pass 2.
func runConcat(sub *protocol.Subordinate, input, subinput, output string) error {
	totalFrames := probeFrameCount(input) + probeFrameCount(subinput)

	args := []string{
		"-y", "-i", input, "-i", subinput,
		"-filter_complex", "[1:v][1:a][0:v][0:a]concat=n=2:v=1:a=1[outv][outa]",
		"-map", "[outv]", "-map", "[outa]",
		output,
	}

	if err := runFfmpeg(sub, args, totalFrames); err != nil {
		return emitFail(sub, err)
	}
	return emitDone(sub, "concat complete")
}

func runFfmpeg(sub *protocol.Subordinate, args []string, totalFrames int) error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pnencode: opening stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("pnencode: starting ffmpeg: %w", err)
	}

	streamProgress(sub, stderr, totalFrames)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("pnencode: ffmpeg exited: %w", err)
	}
	return nil
}

// progressLine matches ffmpeg's default stderr progress text, e.g.
// "frame= 1234 fps= 30 q=28.0 size=12345kB time=00:00:41.23 bitrate=2450.0kbits/s".
var progressLine = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*([\d.]+).*?bitrate=\s*([\d.]+)kbits/s`)

func streamProgress(sub *protocol.Subordinate, stderr io.Reader, totalFrames int) {
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanLinesOrCarriageReturns)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		m := progressLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		frame, fps, bitrate := m[1], m[2], m[3]
		line, err := sub.Tuple(subprocess.StatusProgress, fps, frame, strconv.Itoa(totalFrames), bitrate)
		if err != nil {
			continue
		}
		fmt.Println(line)
	}
}

// scanLinesOrCarriageReturns splits on '\n' or '\r', since ffmpeg rewrites
// its progress line in place with '\r' rather than emitting one line per
// update.
func scanLinesOrCarriageReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type ffprobeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	NbFrames  string            `json:"nb_frames"`
	Tags      map[string]string `json:"tags"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

func runFfprobe(input string) (ffprobeOutput, error) {
	cmd := exec.Command("ffprobe", "-v", "quiet", "-show_streams", "-of", "json", input)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ffprobeOutput{}, fmt.Errorf("pnencode: ffprobe %s: %w", input, err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return ffprobeOutput{}, fmt.Errorf("pnencode: parsing ffprobe output for %s: %w", input, err)
	}
	return parsed, nil
}

// probeAudioStream returns the stream index of the first audio track tagged
// with language lang (spec §4.5: "the encoder CLI separately probes the
// audio track index matching a requested language tag").
func probeAudioStream(input, lang string) (int, error) {
	probed, err := runFfprobe(input)
	if err != nil {
		return 0, err
	}
	for _, s := range probed.Streams {
		if s.CodecType == "audio" && s.Tags["language"] == lang {
			return s.Index, nil
		}
	}
	return 0, fmt.Errorf("pnencode: no audio stream tagged %q", lang)
}

// probeFrameCount returns the video stream's reported frame count, or 0 if
// unavailable; a 0 total is reported as the progress denominator rather
// than failing the encode over a missing progress estimate.
func probeFrameCount(input string) int {
	probed, err := runFfprobe(input)
	if err != nil {
		return 0
	}
	for _, s := range probed.Streams {
		if s.CodecType == "video" {
			n, err := strconv.Atoi(s.NbFrames)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

func emitDone(sub *protocol.Subordinate, message string) error {
	line, err := sub.Message(subprocess.StatusDone, message)
	if err != nil {
		return fmt.Errorf("pnencode: building done frame: %w", err)
	}
	fmt.Println(line)
	return nil
}

func emitFail(sub *protocol.Subordinate, cause error) error {
	line, err := sub.Message(subprocess.StatusFail, cause.Error())
	if err != nil {
		return fmt.Errorf("pnencode: building fail frame: %w", err)
	}
	fmt.Println(line)
	return cause
}
