package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string
	verbose   bool

	// Check command flags
	question       string
	answer         string
	refContext     string
	useContext     bool
	maxVerify      bool
	timeoutMs      int64
	generatorModel string

	// Batch command flags
	inputFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "guardian",
	Short:   "Check LLM answers for hallucinations",
	Version: version,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one question/answer pair",
	Long: `Check one question/answer pair against the detection service.

Examples:
  # Basic check
  guardian check -q "What is the capital of France?" -a "Paris is the capital of France."

  # Check against reference material
  guardian check -q "..." -a "..." --context "$(cat reference.txt)"

  # Force the full cascade
  guardian check -q "..." -a "..." --max`,
	RunE: runCheck,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Check a JSONL file of question/answer pairs",
	Long: `Check a JSONL file where each line is a detection request object:

  {"question": "...", "candidate_answer": "...", "reference_context": "..."}

Results are printed one JSON object per line in input order.`,
	RunE: runBatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the service's active thresholds and budgets",
	RunE:  showConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "detection service URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print full stage outcomes")

	checkCmd.Flags().StringVarP(&question, "question", "q", "", "the question that was asked")
	checkCmd.Flags().StringVarP(&answer, "answer", "a", "", "the candidate answer to check")
	checkCmd.Flags().StringVar(&refContext, "context", "", "reference material the answer should match")
	checkCmd.Flags().BoolVar(&useContext, "use-context", false, "always run context verification")
	checkCmd.Flags().BoolVar(&maxVerify, "max", false, "run the full cascade regardless of confidence")
	checkCmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 0, "per-request budget in milliseconds (0 = server default)")
	checkCmd.Flags().StringVar(&generatorModel, "model", "", "name of the model that produced the answer")
	_ = checkCmd.MarkFlagRequired("question")
	_ = checkCmd.MarkFlagRequired("answer")

	batchCmd.Flags().StringVarP(&inputFile, "input", "i", "", "JSONL input file (- for stdin)")
	_ = batchCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultServerURL() string {
	if url := os.Getenv("GUARDIAN_URL"); url != "" {
		return url
	}
	return "http://localhost:9020"
}

type detectRequest struct {
	Question               string `json:"question"`
	CandidateAnswer        string `json:"candidate_answer"`
	ReferenceContext       string `json:"reference_context,omitempty"`
	UseContextVerification bool   `json:"use_context_verification,omitempty"`
	MaxVerification        bool   `json:"max_verification,omitempty"`
	ModelName              string `json:"model_name,omitempty"`
	TimeoutMs              int64  `json:"timeout_ms,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	req := detectRequest{
		Question:               question,
		CandidateAnswer:        answer,
		ReferenceContext:       refContext,
		UseContextVerification: useContext,
		MaxVerification:        maxVerify,
		ModelName:              generatorModel,
		TimeoutMs:              timeoutMs,
	}

	body, err := postJSON(serverURL+"/v1/detect", req)
	if err != nil {
		return err
	}

	var record map[string]interface{}
	if err := json.Unmarshal(body, &record); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if verbose {
		pretty, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(pretty))
		return nil
	}

	fmt.Printf("decision: %v\n", record["decision"])
	fmt.Printf("hallucination_score: %v\n", record["hallucination_score"])
	if t, ok := record["hallucination_type"]; ok {
		fmt.Printf("hallucination_type: %v\n", t)
	}
	if explanations, ok := record["explanations"].([]interface{}); ok {
		for _, e := range explanations {
			fmt.Printf("  - %v\n", e)
		}
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	var reader io.Reader
	if inputFile == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var items []detectRequest
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item detectRequest
		if err := json.Unmarshal(line, &item); err != nil {
			return fmt.Errorf("invalid input line: %w", err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("no requests in input")
	}

	body, err := postJSON(serverURL+"/v1/detect/batch", map[string]interface{}{"items": items})
	if err != nil {
		return err
	}

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	for _, r := range resp.Results {
		fmt.Println(string(r))
	}
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverURL + "/v1/config")
	if err != nil {
		return fmt.Errorf("failed to call service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func postJSON(url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to call service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
