package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"swap-deposit-example/display"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envRpcUrl     = "RPC_URL"
	envPrivateKey = "PRIVATE_KEY"
	envMnemonic   = "MNEMONIC"

	SignerKey    = "key"
	SignerWallet = "wallet"

	LendingMethodDeposit = "deposit" // aave v2 LendingPool
	LendingMethodSupply  = "supply"  // aave v3 Pool
)

type Config struct {
	Network   Network       `yaml:"network"`
	Contracts Contracts     `yaml:"contracts"`
	Tokens    Tokens        `yaml:"tokens"`
	Swap      SwapConfig    `yaml:"swap"`
	Deposit   DepositConfig `yaml:"deposit"`
	Gas       GasConfig     `yaml:"gas"`
	Receipt   ReceiptConfig `yaml:"receipt"`
	Signer    string        `yaml:"signer"` // key / wallet
	Logger    LogConfig     `yaml:"logger"`

	// 只从环境变量读取，不写进配置文件
	PrivateKey string `yaml:"-"`
	Mnemonic   string `yaml:"-"`
}

type Network struct {
	Name       string `yaml:"name"`
	ChainId    int64  `yaml:"chainid"` // 0 表示不校验
	Rpc        string `yaml:"rpc"`
	MaxConnect int    `yaml:"max_connect"`
}

type Contracts struct {
	UniswapFactory string `yaml:"uniswap_factory"`
	SwapRouter     string `yaml:"swap_router"`
	Quoter         string `yaml:"quoter"` // 可选，为空时不做报价
	LendingPool    string `yaml:"lending_pool"`
	LendingMethod  string `yaml:"lending_method"`
}

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

func (c TokenConfig) Token() Token {
	return Token{
		Symbol:   c.Symbol,
		Address:  common.HexToAddress(c.Address),
		Decimals: c.Decimals,
	}
}

type Tokens struct {
	Usdc TokenConfig `yaml:"usdc"`
	Link TokenConfig `yaml:"link"`
}

type SwapConfig struct {
	AmountIn         string `yaml:"amount_in"`          // 十进制 USDC 数量
	FeeTier          uint32 `yaml:"fee_tier"`           // 查找 pool 用的费率档位
	SlippageBps      uint32 `yaml:"slippage_bps"`       // 配置了 quoter 时生效
	AmountOutMinimum string `yaml:"amount_out_minimum"` // 未配置 quoter 时使用，十进制 LINK 数量
}

type DepositConfig struct {
	Amount       string `yaml:"amount"` // 十进制 LINK 数量
	ReferralCode uint16 `yaml:"referral_code"`
}

type GasConfig struct {
	LimitMultiplier float64 `yaml:"limit_multiplier"` // gasLimit = estimateGas * LimitMultiplier
	PriorityRate    float64 `yaml:"priority_rate"`    // MaxPriorityFee = SuggestPriorityFee * PriorityRate
	MaxFeeRate      float64 `yaml:"max_fee_rate"`     // MaxFee = (MaxPriorityFee + BaseFee) * MaxFeeRate
}

type ReceiptConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	TimeoutSec     int `yaml:"timeout_sec"` // 0 表示一直等待
}

func (c ReceiptConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c ReceiptConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

type LogConfig struct {
	Format   string `yaml:"format"`  // console / json
	LogDir   string `yaml:"log_dir"` // 为空时不写文件
	Level    string `yaml:"level"`   // debug / info / warn / error
	Compress bool   `yaml:"compress"`
}

func (c *LogConfig) ToLogOption() display.LogOption {
	return display.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// DefaultConfig 默认配置，配置文件中未出现的字段保持默认值
func DefaultConfig() Config {
	return Config{
		Network: Network{
			Name:       "sepolia",
			MaxConnect: 2,
		},
		Contracts: Contracts{
			LendingMethod: LendingMethodDeposit,
		},
		Tokens: Tokens{
			Usdc: TokenConfig{Symbol: "USDC", Decimals: 6},
			Link: TokenConfig{Symbol: "LINK", Decimals: 18},
		},
		Swap: SwapConfig{
			AmountIn:         "1",
			FeeTier:          3000,
			SlippageBps:      50,
			AmountOutMinimum: "0",
		},
		Deposit: DepositConfig{
			Amount: "0.1",
		},
		Gas: GasConfig{
			LimitMultiplier: 1.3,
			PriorityRate:    1.5,
			MaxFeeRate:      1.1,
		},
		Receipt: ReceiptConfig{
			PollIntervalMs: 3000,
			TimeoutSec:     300,
		},
		Signer: SignerKey,
		Logger: LogConfig{
			Format: "console",
			Level:  "info",
		},
	}
}

// LoadConfig 读取 .env (可选) 与配置文件，环境变量优先
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data, os.Getenv)
}

// ParseConfig 解析 yaml 配置并合并环境变量，结果已校验
func ParseConfig(data []byte, getenv func(string) string) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if rpc := strings.TrimSpace(getenv(envRpcUrl)); rpc != "" {
		config.Network.Rpc = rpc
	}
	config.PrivateKey = strings.TrimSpace(getenv(envPrivateKey))
	config.Mnemonic = strings.TrimSpace(getenv(envMnemonic))

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Network.Rpc == "" {
		return errMissingRpc
	}
	if c.PrivateKey == "" && c.Mnemonic == "" {
		return errMissingKey
	}
	if c.Signer != SignerKey && c.Signer != SignerWallet {
		return fmt.Errorf("%w: %q", errUnsupportSigner, c.Signer)
	}
	if c.Contracts.LendingMethod != LendingMethodDeposit && c.Contracts.LendingMethod != LendingMethodSupply {
		return fmt.Errorf("%w: %q", errUnsupportLendMethod, c.Contracts.LendingMethod)
	}

	addresses := []struct {
		name     string
		value    string
		optional bool
	}{
		{"contracts.uniswap_factory", c.Contracts.UniswapFactory, false},
		{"contracts.swap_router", c.Contracts.SwapRouter, false},
		{"contracts.quoter", c.Contracts.Quoter, true},
		{"contracts.lending_pool", c.Contracts.LendingPool, false},
		{"tokens.usdc.address", c.Tokens.Usdc.Address, false},
		{"tokens.link.address", c.Tokens.Link.Address, false},
	}
	for _, a := range addresses {
		if a.optional && a.value == "" {
			continue
		}
		if !common.IsHexAddress(a.value) || common.HexToAddress(a.value) == (common.Address{}) {
			return fmt.Errorf("invalid address %s: %q", a.name, a.value)
		}
	}

	for name, token := range map[string]TokenConfig{"usdc": c.Tokens.Usdc, "link": c.Tokens.Link} {
		if token.Decimals < 0 || token.Decimals > 77 {
			return fmt.Errorf("invalid decimals tokens.%s.decimals: %d", name, token.Decimals)
		}
	}

	if _, err := ParseUnits(c.Swap.AmountIn, c.Tokens.Usdc.Decimals); err != nil {
		return fmt.Errorf("swap.amount_in: %w", err)
	}
	if _, err := ParseUnits(c.Swap.AmountOutMinimum, c.Tokens.Link.Decimals); err != nil {
		return fmt.Errorf("swap.amount_out_minimum: %w", err)
	}
	if _, err := ParseUnits(c.Deposit.Amount, c.Tokens.Link.Decimals); err != nil {
		return fmt.Errorf("deposit.amount: %w", err)
	}
	if c.Swap.FeeTier == 0 || c.Swap.FeeTier >= 1<<24 {
		return fmt.Errorf("invalid swap.fee_tier: %d", c.Swap.FeeTier)
	}
	if c.Swap.SlippageBps > bpsDenominator {
		return fmt.Errorf("invalid swap.slippage_bps: %d", c.Swap.SlippageBps)
	}
	if c.Gas.LimitMultiplier < 1 || c.Gas.PriorityRate <= 0 || c.Gas.MaxFeeRate < 1 {
		return fmt.Errorf("invalid gas config: %+v", c.Gas)
	}
	if c.Receipt.PollIntervalMs <= 0 || c.Receipt.TimeoutSec < 0 {
		return fmt.Errorf("invalid receipt config: %+v", c.Receipt)
	}
	return nil
}
