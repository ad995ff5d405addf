package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/birdblues/translator/internal/fetch"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// fetch 命令相关标志
	fetchOutputDir string
	fetchTimeout   time.Duration
)

// NewFetchCommand 创建 fetch 命令
func NewFetchCommand() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [flags] URL",
		Short: "抓取网页并保存为 markdown 剪藏",
		Long: `抓取网页正文并转换为带剪藏头的 markdown 文件，
文件名取自网页标题。保存后可直接交给根命令翻译:

  translator fetch https://example.com/post
  translator "Post Title.md"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), args[0])
		},
	}

	fetchCmd.Flags().StringVarP(&fetchOutputDir, "dir", "d", ".", "剪藏保存目录")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "抓取超时时间")

	return fetchCmd
}

// runFetch 抓取网页并把剪藏写入目标目录
func runFetch(ctx context.Context, rawURL string) error {
	spinner, _ := pterm.DefaultSpinner.Start("抓取网页: " + rawURL)

	client := &http.Client{Timeout: fetchTimeout}
	clipping, err := fetch.Fetch(ctx, client, rawURL)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}

	name := fetch.Filename(clipping.Title) + ".md"
	outPath := filepath.Join(fetchOutputDir, name)
	if err := os.WriteFile(outPath, []byte(clipping.Document()), 0o644); err != nil {
		spinner.Fail(err.Error())
		return err
	}

	spinner.Success(pterm.Sprintf("已保存: %s (%s)", outPath, clipping.Title))
	return nil
}
