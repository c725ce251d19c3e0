package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Entity type names as persisted by the store.
const (
	UserType                         = "User"
	LiquidityPositionType            = "LiquidityPosition"
	UserLiquidityPositionDayDataType = "UserLiquidityPositionDayData"
	ExceptionType                    = "Exception"
	DataSourceType                   = "DataSource"
)

// AddressID returns the lowercase hex form used in entity ids.
func AddressID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// PositionID returns the id of the (pool, user) liquidity position.
func PositionID(pool, user common.Address) string {
	return AddressID(pool) + "-" + AddressID(user)
}

// DayDataID returns the id of the snapshot of a position for a day index.
func DayDataID(positionID string, dayIndex int64) string {
	return fmt.Sprintf("%s-%d", positionID, dayIndex)
}

// User is an account that has interacted with a watched pool.
type User struct {
	ID string `json:"id"`
}

func (u *User) EntityType() string { return UserType }
func (u *User) EntityID() string   { return u.ID }

// LiquidityPosition tracks one user's share balance in one pool.
type LiquidityPosition struct {
	ID                  string          `json:"id"`
	PoolAddress         string          `json:"pool_address"`
	User                string          `json:"user"`
	PoolProviderName    string          `json:"pool_provider_name"`
	BalanceFromMintBurn decimal.Decimal `json:"balance_from_mint_burn"`
	Balance             decimal.Decimal `json:"balance"`
}

func (p *LiquidityPosition) EntityType() string { return LiquidityPositionType }
func (p *LiquidityPosition) EntityID() string   { return p.ID }

// UserLiquidityPositionDayData is the per-day snapshot of a position.
type UserLiquidityPositionDayData struct {
	ID                  string          `json:"id"`
	Date                int64           `json:"date"`
	PoolProviderName    string          `json:"pool_provider_name"`
	PoolAddress         string          `json:"pool_address"`
	UserAddress         string          `json:"user_address"`
	Balance             decimal.Decimal `json:"balance"`
	BalanceFromMintBurn decimal.Decimal `json:"balance_from_mint_burn"`
}

func (d *UserLiquidityPositionDayData) EntityType() string { return UserLiquidityPositionDayDataType }
func (d *UserLiquidityPositionDayData) EntityID() string   { return d.ID }

// Exception is an audit record of a failed transaction.
type Exception struct {
	ID      string        `json:"id"`
	Addrs   hexutil.Bytes `json:"addrs"`
	TxHash  hexutil.Bytes `json:"tx_hash"`
	Message string        `json:"message"`
}

func (e *Exception) EntityType() string { return ExceptionType }
func (e *Exception) EntityID() string   { return e.ID }

// DataSource is a contract registered from a template at runtime.
type DataSource struct {
	ID             string            `json:"id"`
	Template       string            `json:"template"`
	Address        string            `json:"address"`
	Context        DataSourceContext `json:"context,omitempty"`
	CreatedAtBlock uint64            `json:"created_at_block"`
}

func (d *DataSource) EntityType() string { return DataSourceType }
func (d *DataSource) EntityID() string   { return d.ID }
