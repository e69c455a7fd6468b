// Command queue-clear deletes every segment in a queue directory.
//
// Exit codes: 0 on success, -1 if the path does not exist, -2 on any other
// error.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/ict-project/goqueue/queue"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <queue-dir>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(-2)
	}
	dir := flag.Arg(0)

	logger := levelFilteredLogger()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		level.Error(logger).Log("msg", "queue directory does not exist", "dir", dir)
		os.Exit(-1)
	}

	q, err := queue.Open(dir, queue.WithLogger(logger))
	if err != nil {
		level.Error(logger).Log("msg", "failed to open queue", "dir", dir, "err", err)
		os.Exit(-2)
	}
	defer q.Close()

	if err := q.Clear(); err != nil {
		level.Error(logger).Log("msg", "failed to clear queue", "dir", dir, "err", err)
		os.Exit(-2)
	}
	level.Info(logger).Log("msg", "queue cleared", "dir", dir)
	os.Exit(0)
}

func levelFilteredLogger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	switch os.Getenv("QUEUE_LOG_LEVEL") {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}
