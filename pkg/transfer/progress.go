package transfer

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kasuboski/showsync/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

// LogProgress logs the start of each transfer. It is used when output is not a terminal.
func LogProgress(item Item, index, total int) (ProgressFunc, func()) {
	logger.Get().Infow(fmt.Sprintf("(%d/%d) downloading", index, total),
		"file", path.Base(item.Remote),
		"size", humanize.Bytes(uint64(item.Size)),
	)
	return nil, func() {}
}

// BarProgress draws a progress bar per transfer on w
func BarProgress(w io.Writer) ProgressFactory {
	return func(item Item, index, total int) (ProgressFunc, func()) {
		bar := progressbar.NewOptions64(item.Size,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(fmt.Sprintf("(%d/%d) %s", index, total, path.Base(item.Remote))),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
		)

		report := func(done, _ int64) {
			_ = bar.Set64(done)
		}
		return report, func() {
			_ = bar.Exit()
		}
	}
}
