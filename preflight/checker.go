// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/palomachain/wasmdeploy"
)

// DefaultTimeout is the default timeout for node queries.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckNodeReachable verifies the node answers queries.
	CheckNodeReachable CheckName = "node_reachable"
	// CheckChainIDMatch verifies the node's network matches the config.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer holds min_balance.
	CheckDeployerBalance CheckName = "deployer_balance"
	// CheckArtifacts verifies every wasm file the plan uploads is present.
	CheckArtifacts CheckName = "artifacts"
)

// Node is the subset of *wasmdeploy.Client the checks query.
type Node interface {
	ChainID(ctx context.Context) (string, error)
	Height(ctx context.Context) (int64, error)
	Balance(ctx context.Context, denom string) (math.Int, error)
}

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName              `json:"name"`
	Passed  bool                   `json:"passed"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks.
type Request struct {
	ChainID         string   `json:"chain_id"`
	DeployerAddress string   `json:"deployer_address"`
	Denom           string   `json:"denom"`
	MinBalance      math.Int `json:"min_balance"`
	// Artifacts are wasm file paths; the artifact check is skipped when empty.
	Artifacts []string `json:"artifacts,omitempty"`
}

// Response contains the results of all pre-flight checks.
type Response struct {
	OK              bool          `json:"ok"`
	Checks          []CheckResult `json:"checks"`
	DeployerAddress string        `json:"deployer_address"`
	Height          int64         `json:"height,omitempty"`
	CurrentBalance  string        `json:"current_balance,omitempty"`
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
	}
}

// WithTimeout sets a custom timeout for node queries.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// RunChecks performs all pre-flight checks and returns the results.
func (c *Checker) RunChecks(ctx context.Context, node Node, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response := &Response{
		OK:              true,
		Checks:          make([]CheckResult, 0, 4),
		DeployerAddress: req.DeployerAddress,
	}

	if len(req.Artifacts) > 0 {
		artifacts := c.checkArtifacts(req.Artifacts)
		response.Checks = append(response.Checks, artifacts)
		if !artifacts.Passed {
			response.OK = false
		}
	}

	height, reachable := c.checkNodeReachable(rpcCtx, node)
	response.Checks = append(response.Checks, reachable)
	if !reachable.Passed {
		response.OK = false
		return response, nil
	}
	response.Height = height

	chainID := c.checkChainIDMatch(rpcCtx, node, req.ChainID)
	response.Checks = append(response.Checks, chainID)
	if !chainID.Passed {
		response.OK = false
	}

	balance := c.checkDeployerBalance(rpcCtx, node, req.Denom, req.MinBalance)
	response.Checks = append(response.Checks, balance)
	if !balance.Passed {
		response.OK = false
	}
	if have, ok := balance.Details["have"].(string); ok {
		response.CurrentBalance = have + req.Denom
	}

	return response, nil
}

func (c *Checker) validateRequest(req *Request) error {
	if req.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if req.Denom == "" {
		return fmt.Errorf("denom is required")
	}
	if req.DeployerAddress == "" {
		return fmt.Errorf("deployer_address is required")
	}
	if _, _, err := bech32.DecodeAndConvert(req.DeployerAddress); err != nil {
		return fmt.Errorf("deployer_address is not a valid bech32 address")
	}
	if !req.MinBalance.IsNil() && req.MinBalance.IsNegative() {
		return fmt.Errorf("min_balance must not be negative")
	}
	return nil
}

func (c *Checker) checkNodeReachable(ctx context.Context, node Node) (int64, CheckResult) {
	result := CheckResult{
		Name: CheckNodeReachable,
	}

	height, err := node.Height(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Node query failed: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return 0, result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Node reachable at height %d", height)
	result.Details = map[string]interface{}{
		"height": height,
	}
	return height, result
}

func (c *Checker) checkChainIDMatch(ctx context.Context, node Node, expected string) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}

	actual, err := node.ChainID(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get chain ID: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	if actual != expected {
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %s, got %s", expected, actual)
		result.Details = map[string]interface{}{
			"expected": expected,
			"actual":   actual,
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %s confirmed", expected)
	result.Details = map[string]interface{}{
		"chain_id": expected,
	}
	return result
}

func (c *Checker) checkDeployerBalance(ctx context.Context, node Node, denom string, required math.Int) CheckResult {
	result := CheckResult{
		Name: CheckDeployerBalance,
	}
	if required.IsNil() {
		required = math.ZeroInt()
	}

	balance, err := node.Balance(ctx, denom)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get deployer balance: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	result.Details = map[string]interface{}{
		"have":  balance.String(),
		"need":  required.String(),
		"denom": denom,
	}

	if balance.LT(required) {
		result.Message = fmt.Sprintf("Insufficient deployer balance: have %s%s, need %s%s", balance, denom, required, denom)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Deployer has sufficient balance: %s%s", balance, denom)
	return result
}

func (c *Checker) checkArtifacts(paths []string) CheckResult {
	result := CheckResult{
		Name: CheckArtifacts,
	}

	var missing []string
	for _, p := range paths {
		if _, err := wasmdeploy.ReadWasm(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		result.Message = fmt.Sprintf("%d of %d wasm artifacts missing or invalid", len(missing), len(paths))
		result.Details = map[string]interface{}{
			"missing": missing,
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("All %d wasm artifacts present", len(paths))
	return result
}
