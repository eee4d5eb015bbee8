// Package builtin provides the sample workers the ricecoder CLI registers by
// default. They are small, deterministic and read only from the project file
// system, which makes them useful for exercising plans end to end.
package builtin

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
)

// Task kinds handled by this package.
const (
	KindLineCount = "line-count"
	KindTodoScan  = "todo-scan"
	KindRecommend = "recommend"
	KindSleep     = "sleep"
)

// Register adds every builtin worker to reg.
func Register(reg *agent.Registry) error {
	workers := map[string]agent.Agent{
		KindLineCount: LineCounter{},
		KindTodoScan:  TodoScanner{},
		KindRecommend: Recommender{},
		KindSleep:     Sleeper{},
	}
	for _, kind := range []string{KindLineCount, KindTodoScan, KindRecommend, KindSleep} {
		if err := reg.Register(kind, workers[kind]); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry preloaded with the builtin workers.
func NewRegistry() *agent.Registry {
	reg := agent.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// scanLines calls fn for every line of path, stopping early when ctx is done
// or fn returns false. It returns the number of bytes read.
func scanLines(ctx context.Context, fsys fs.FS, path string, fn func(lineNo int, line string) bool) (int64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var read int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if lineNo%256 == 0 {
			if err := ctx.Err(); err != nil {
				return read, err
			}
		}
		lineNo++
		line := scanner.Text()
		read += int64(len(line)) + 1
		if !fn(lineNo, line) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return read, fmt.Errorf("read %s: %w", path, err)
	}
	return read, nil
}
