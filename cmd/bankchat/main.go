package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"BankAgent/internal/app"
	"BankAgent/internal/chat"
	"BankAgent/internal/config"
	"BankAgent/internal/ledger"
	"BankAgent/pkg/logger"
)

const banner = `🏦 银行智能助手
你可以尝试以下操作：
  - 查询余额：查询账户1001的余额
  - 转账：从账户1001向账户1002转账500元
  - 列出账户：显示所有账户
命令：/accounts 查看账户，/history 查看对话记录，/quit 退出`

// main 是终端版银行助手的入口。
func main() {
	configPath := flag.String("config", "", "配置文件路径（JSON 或 YAML）")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("bankchat 运行失败: %v", err)
	}
}

func run(ctx context.Context, configPath string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// 终端输出留给对话，日志默认写到 stderr。
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return repl(ctx, a.Chat, a.Ledger, in, out)
}

func repl(ctx context.Context, svc *chat.Service, l *ledger.Ledger, in io.Reader, out io.Writer) error {
	sessionID, err := svc.Open(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, banner)
	if !svc.Configured() {
		fmt.Fprintln(out, chat.MissingKeyMessage)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/accounts":
			printAccounts(out, l)
			continue
		case "/history":
			printHistory(ctx, out, svc, sessionID)
			continue
		}

		reply, err := svc.Turn(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "请求失败: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Text)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printAccounts(out io.Writer, l *ledger.Ledger) {
	fmt.Fprintln(out, "账户信息")
	for _, account := range l.ListAll() {
		fmt.Fprintf(out, "  %s (%s)  余额: %s\n", account.Name, account.ID, ledger.FormatYuan(account.Balance))
	}
}

func printHistory(ctx context.Context, out io.Writer, svc *chat.Service, sessionID string) {
	messages, err := svc.History(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(out, "读取对话记录失败: %v\n", err)
		return
	}
	for _, msg := range messages {
		fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
	}
}
