package cli

import (
	"fmt"
	"os"

	"github.com/birdblues/translator/internal/config"
	"github.com/birdblues/translator/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// format 命令相关标志
	formatCheckOnly  bool   // 只检查是否需要规整，不写回
	formatOutputFile string // 输出到指定文件而不是就地覆盖
)

// NewFormatCommand 创建 format 命令
func NewFormatCommand() *cobra.Command {
	formatCmd := &cobra.Command{
		Use:   "format [flags] file...",
		Short: "规整 markdown 文件",
		Long: `对 markdown 文件做和翻译前相同的规整：
统一编码和换行、收紧标题与列表的空行，代码块、表格和
front matter 的原始文本原样保留。

用法示例:
  translator format document.md                    # 就地规整
  translator format --check document.md            # 只检查，不修改
  translator format -o fixed.md document.md        # 输出到指定文件
  translator format --format-engine markdownfmt document.md`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("requires at least 1 file argument")
			}
			if cmd.Flags().Changed("output") && len(args) != 1 {
				return fmt.Errorf("--output only works with a single input file, received %d", len(args))
			}
			return nil
		},
		RunE: runFormatCommand,
	}

	formatCmd.Flags().BoolVar(&formatCheckOnly, "check", false, "只检查是否需要规整，不写回（有差异时返回错误）")
	formatCmd.Flags().StringVarP(&formatOutputFile, "output", "o", "", "输出文件路径（只适用于单个输入文件）")
	formatCmd.Flags().StringVar(&formatEngine, "format-engine", "", "规整引擎 (builtin, markdownfmt)")

	return formatCmd
}

func runFormatCommand(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(debugMode)
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Warn("加载配置失败，使用默认配置", zap.Error(err))
		cfg = config.NewDefaultConfig()
	}
	updateConfigFromFlags(cmd, cfg)

	changed := 0
	for _, path := range args {
		diff, err := formatOne(path, cfg.FormatEngine)
		if err != nil {
			return fmt.Errorf("format %s: %w", path, err)
		}
		if !diff {
			continue
		}
		changed++
		if formatCheckOnly {
			fmt.Printf("✏️ 需要规整: %s\n", path)
		} else {
			fmt.Printf("✅ 已规整: %s\n", path)
		}
	}

	if formatCheckOnly && changed > 0 {
		return fmt.Errorf("%d file(s) need formatting", changed)
	}
	return nil
}

// formatOne 规整单个文件，返回内容是否发生变化
func formatOne(path, engine string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	formatted, err := renderFormatted(data, engine)
	if err != nil {
		return false, err
	}

	if formatted == string(data) {
		return false, nil
	}
	if formatCheckOnly {
		return true, nil
	}

	out := formatOutputFile
	if out == "" {
		out = path
	}
	return true, os.WriteFile(out, []byte(formatted), 0o644)
}
