package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:3210", "Adele server URL")
	user := flag.String("user", "cli-user", "User name for chat")
	flag.Parse()

	fmt.Println("Adele CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave. Every message becomes a coordinator task.")
	fmt.Println("Commands: /agents, /runs, /status")
	fmt.Println("---")

	fetchAgents(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/agents" {
			fetchAgents(*server)
			continue
		}
		if input == "/runs" {
			fetchRuns(*server)
			continue
		}
		if input == "/status" {
			fetchStatus(*server)
			continue
		}

		sendTask(*server, *user, input)
	}
}

func fetchAgents(server string) {
	resp, err := http.Get(server + "/api/agents")
	if err != nil {
		printError("Failed to fetch agents: %v", err)
		return
	}
	defer resp.Body.Close()

	var agents []struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		State string `json:"state"`
		Step  int    `json:"step"`
		Phase string `json:"phase,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		printError("Failed to parse agents: %v", err)
		return
	}
	fmt.Println("Agents:")
	for _, a := range agents {
		line := fmt.Sprintf("  %-12s %s", a.Type, a.State)
		if a.Phase != "" {
			line += fmt.Sprintf(" (phase: %s)", a.Phase)
		}
		fmt.Println(line)
	}
}

func fetchRuns(server string) {
	resp, err := http.Get(server + "/api/tasks?limit=10")
	if err != nil {
		printError("Failed to fetch runs: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}

	var runs []struct {
		ID          string    `json:"id"`
		Source      string    `json:"source"`
		Description string    `json:"description"`
		Success     bool      `json:"success"`
		CreatedAt   time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		printError("Failed to parse runs: %v", err)
		return
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet.")
		return
	}
	fmt.Println("Recent runs:")
	for _, r := range runs {
		icon := "\033[31m✗\033[0m"
		if r.Success {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s  %s  \033[90m%s\033[0m\n",
			icon, r.CreatedAt.Format("15:04:05"), truncate(r.Description, 60), r.ID)
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform  string `json:"platform"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
		Details   string `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	if len(statuses) == 0 {
		fmt.Println("No gateway adapters registered.")
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m(%s)\033[0m", s.Error)
		}
		fmt.Println()
	}
}

type taskResponse struct {
	RunID  string `json:"run_id"`
	Result struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
		Output  struct {
			Plan struct {
				Tasks []struct {
					ID          string `json:"id"`
					Agent       string `json:"agent"`
					Description string `json:"description"`
				} `json:"tasks"`
				Summary string `json:"summary"`
			} `json:"plan"`
			Results map[string]struct {
				Success bool           `json:"success"`
				Output  map[string]any `json:"output"`
				Error   string         `json:"error,omitempty"`
			} `json:"results"`
		} `json:"output"`
		Artifacts *struct {
			Files []struct {
				Path string `json:"path"`
			} `json:"files,omitempty"`
			Schemas []struct {
				Name string `json:"name"`
			} `json:"schemas,omitempty"`
			Docs []struct {
				Title string `json:"title"`
			} `json:"docs,omitempty"`
		} `json:"artifacts,omitempty"`
	} `json:"result"`
}

func sendTask(server, user, content string) {
	body, _ := json.Marshal(map[string]any{
		"description": content,
		"input":       map[string]any{"user": user},
	})

	// Planning plus several worker rounds can take a while.
	client := &http.Client{Timeout: 180 * time.Second}
	resp, err := client.Post(server+"/api/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}

	var tr taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	renderResult(&tr)
}

func renderResult(tr *taskResponse) {
	res := &tr.Result
	if !res.Success {
		printError("Run failed: %s", res.Error)
		return
	}

	plan := &res.Output.Plan
	if len(plan.Tasks) == 0 {
		// Direct answer, no subtasks planned.
		fmt.Printf("\033[36m[coordinator]\033[0m %s\n", plan.Summary)
		return
	}

	for _, t := range plan.Tasks {
		r, ok := res.Output.Results[t.ID]
		if !ok {
			fmt.Printf("  \033[90m- [%s] %s (skipped)\033[0m\n", t.Agent, t.Description)
			continue
		}
		icon := "\033[31m✗\033[0m"
		if r.Success {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s \033[36m[%s]\033[0m %s\n", icon, t.Agent, t.Description)
		if summary, ok := r.Output["summary"].(string); ok && summary != "" {
			fmt.Printf("     %s\n", truncate(summary, 200))
		}
		if r.Error != "" {
			fmt.Printf("     \033[31m%s\033[0m\n", r.Error)
		}
	}

	if plan.Summary != "" {
		fmt.Printf("\n%s\n", plan.Summary)
	}

	if arts := res.Artifacts; arts != nil {
		for _, f := range arts.Files {
			fmt.Printf("  \033[33mfile:\033[0m %s\n", f.Path)
		}
		for _, s := range arts.Schemas {
			fmt.Printf("  \033[33mschema:\033[0m %s\n", s.Name)
		}
		for _, d := range arts.Docs {
			fmt.Printf("  \033[33mdoc:\033[0m %s\n", d.Title)
		}
	}

	fmt.Printf("\033[90mrun %s\033[0m\n", tr.RunID)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
