package cmd

import (
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

func Logger(w io.Writer, lvl slog.Level) log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(w, lvl))
}

// commandLogger logs to the command's error writer, at debug level with --verbose.
func commandLogger(ctx *cli.Context) log.Logger {
	lvl := log.LevelInfo
	if ctx.Bool(VerboseFlag.Name) {
		lvl = log.LevelDebug
	}
	return Logger(ctx.App.ErrWriter, lvl)
}

// LoggingWriter wraps a logger as the display of the machine.
type LoggingWriter struct {
	Name string
	Log  log.Logger
}

func logAsText(b string) bool {
	for _, c := range b {
		if (c < 0x20 || c >= 0x7F) && (c != '\n' && c != '\t') {
			return false
		}
	}
	return true
}

func (lw *LoggingWriter) Write(b []byte) (int, error) {
	t := string(b)
	if logAsText(t) {
		lw.Log.Info("", "name", lw.Name, "text", t)
	} else {
		lw.Log.Info("", "name", lw.Name, "data", hexutil.Bytes(b))
	}
	return len(b), nil
}
