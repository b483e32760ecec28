// Command pharma-repl runs the pharmacy assistant as a local terminal chat,
// sharing the server's orchestration stack without the HTTP layer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/catalog"
	"github.com/medkiosk/pharma-agent/internal/config"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/safety"
	"github.com/medkiosk/pharma-agent/internal/tools"
	"github.com/medkiosk/pharma-agent/internal/userdb"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiCyan  = "\033[96m"
	ansiGray  = "\033[90m"
)

func main() {
	fs := flag.NewFlagSet("pharma-repl", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	userID := fs.String("user", "", "User id for prescription lookups and usage tracking")
	language := fs.String("lang", "", "Conversation language (en|he|ru|ar); empty detects from input")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(filepath.Clean(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The REPL is interactive; keep structured logs out of the conversation.
	logger, err := config.NewLogger("text", "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	apiKey, err := cfg.Provider.ResolveAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve api key: %v\n", err)
		os.Exit(1)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	messages, err := i18n.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load messages: %v\n", err)
		os.Exit(1)
	}
	users, err := userdb.Open(cfg.UserDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open user db: %v\n", err)
		os.Exit(1)
	}
	defer users.Close()

	provider, err := agent.NewProvider(cfg.Provider.EffectiveType(), apiKey, cfg.Provider.BaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init provider: %v\n", err)
		os.Exit(1)
	}
	schemas, err := agent.LoadToolSchemas()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load tool schemas: %v\n", err)
		os.Exit(1)
	}

	orchestrator, err := agent.NewOrchestrator(agent.OrchestratorOptions{
		Provider: provider,
		Handlers: tools.All(tools.Deps{
			Catalog:          cat,
			Messages:         messages,
			Users:            users,
			InventoryBaseURL: cfg.EffectiveInventoryURL(),
			HTTPClient:       &http.Client{Timeout: cfg.EffectiveInventoryTimeout()},
			Logger:           logger,
		}),
		Schemas:     schemas,
		Inferrer:    agent.NewInferrer(cat),
		Guard:       safety.NewGuard(),
		Messages:    messages,
		Usage:       users,
		Logger:      logger,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxSteps:    cfg.EffectiveMaxSteps(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init orchestrator: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	repl{
		orchestrator: orchestrator,
		prompts:      agent.NewPromptBuilder(cat),
		userID:       strings.TrimSpace(*userID),
		language:     strings.TrimSpace(*language),
		useANSI:      term.IsTerminal(int(os.Stdout.Fd())),
	}.run(ctx)
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.MedicationsDBPath != "" {
		return catalog.LoadSQLite(context.Background(), cfg.MedicationsDBPath, cfg.PharmaciesPath)
	}
	return catalog.LoadJSON(cfg.MedicationsPath, cfg.PharmaciesPath)
}

type repl struct {
	orchestrator *agent.Orchestrator
	prompts      *agent.PromptBuilder
	userID       string
	language     string
	useANSI      bool
}

func (r repl) run(ctx context.Context) {
	fmt.Println(r.style("Pharmacy assistant. Type /help for commands, /exit to quit.", ansiGray))

	history := make([]agent.ConversationMessage, 0, 16)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(r.style("you> ", ansiBold+ansiCyan))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/exit" || line == "/quit":
			return
		case line == "/reset":
			history = history[:0]
			fmt.Println(r.style("conversation cleared", ansiGray))
			continue
		case line == "/help":
			fmt.Println("  /lang <code>  set conversation language (en|he|ru|ar)")
			fmt.Println("  /reset        clear conversation history")
			fmt.Println("  /exit         quit")
			continue
		case strings.HasPrefix(line, "/lang"):
			r.language = strings.TrimSpace(strings.TrimPrefix(line, "/lang"))
			fmt.Println(r.style("language set to "+i18n.NormalizeLang(r.language), ansiGray))
			continue
		}

		history = append(history, agent.ConversationMessage{Role: agent.RoleUser, Content: line})

		lang := r.language
		if lang == "" {
			lang = i18n.DetectLanguage(line)
		}

		result, err := r.orchestrator.RunTurn(ctx, agent.TurnOptions{
			SystemPrompt: r.prompts.SystemPrompt(lang),
			History:      history,
			Language:     lang,
			UserID:       r.userID,
		}, r.printEvent)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			// Drop the failed exchange so a retry starts clean.
			history = history[:len(history)-1]
			continue
		}
		if result.AssistantContent != "" {
			history = append(history, agent.ConversationMessage{Role: agent.RoleAssistant, Content: result.AssistantContent})
		}
	}
}

func (r repl) printEvent(ev agent.OutputEvent) error {
	switch ev.Type {
	case agent.EventText:
		fmt.Println(ev.Content)
	case agent.EventToolExecution:
		fmt.Println(r.style("  [tool] "+ev.ToolName, ansiGray))
	case agent.EventError:
		fmt.Println(r.style("  [error] "+ev.Error, ansiGray))
	}
	return nil
}

func (r repl) style(text, code string) string {
	if !r.useANSI {
		return text
	}
	return code + text + ansiReset
}
