package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// stdinConfirmer asks on the terminal before a large allocation.
type stdinConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (s stdinConfirmer) Confirm(ctx context.Context, sizeBytes int64) (bool, error) {
	fmt.Fprintf(s.out, "Generating %s at once may exhaust memory. Continue? [y/N] ", humanize.IBytes(uint64(sizeBytes)))

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(s.in).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
