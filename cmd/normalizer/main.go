package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4"

	"github.com/perfwatch/beacon/internal/chrometrace"
	"github.com/perfwatch/beacon/internal/marker"
)

const (
	workersCount int = 64

	normalizedSuffix = ".normalized.json.lz4"
)

func main() {
	args := os.Args[1:]
	if len(args) != 1 {
		fmt.Println("./normalizer <traces directory>") // nolint
		return
	}

	root := args[0]
	f, err := os.Open(root)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	pathChannel := make(chan string, workersCount)
	errChannel := make(chan error)

	go func() {
		for err := range errChannel {
			log.Println(err)
		}
	}()

	var wg sync.WaitGroup

	for w := 0; w < workersCount; w++ {
		wg.Add(1)
		go NormalizeTrace(pathChannel, errChannel, &wg)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, normalizedSuffix) {
			return nil
		}
		pathChannel <- path
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	close(pathChannel)
	wg.Wait()
	close(errChannel)
}

func NormalizeTrace(pathChannel chan string, errChan chan error, wg *sync.WaitGroup) {
	defer wg.Done()

	for path := range pathChannel {
		err := normalizeFile(path)
		if err != nil && !errors.Is(err, io.EOF) {
			errChan <- fmt.Errorf("%s: %w", path, err)
		}
	}
}

func normalizeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".lz4") {
		r = lz4.NewReader(f)
	}

	var trace chrometrace.Trace
	if err := gojson.NewDecoder(r).Decode(&trace); err != nil {
		return err
	}

	summary, err := marker.Normalize(&trace)
	if err != nil && !errors.Is(err, marker.ErrNoFrameData) {
		return err
	}
	if errors.Is(err, marker.ErrNoFrameData) {
		log.Printf("%s: no frame data, markers removed only", path)
	}

	out, err := os.Create(outputPath(path))
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(out)
	if err := gojson.NewEncoder(zw).Encode(trace); err != nil {
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	log.Printf(
		"%s: %d events in, %d out, %d markers removed",
		path,
		summary.EventsIn,
		summary.EventsOut,
		summary.MarkersRemoved,
	)
	return nil
}

func outputPath(path string) string {
	base := strings.TrimSuffix(path, ".lz4")
	base = strings.TrimSuffix(base, ".json")
	return base + normalizedSuffix
}
