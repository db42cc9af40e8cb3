package xsign

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain separates signatures across deployments, same role as the
// teacher's EIP712Domain.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func DefaultDomain() Domain {
	return Domain{
		Name:              "slabdex",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// PlaceOrderTyped is the typed-data shape a user signs client-side to
// authorize a PlaceOrder instruction (§6 discriminator 3), adapted from
// the teacher's OrderEIP712 to the slab's fixed-point price/qty scale
// and maker-class field in place of the teacher's leverage.
type PlaceOrderTyped struct {
	InstrumentIdx uint16
	Side          uint8
	Price         *big.Int
	Qty           *big.Int
	TIF           uint8
	MakerClass    uint8
	Nonce         *big.Int
	Deadline      *big.Int
	Owner         common.Address
}

// ReserveTyped is the typed-data shape authorizing a router-issued
// Reserve against a specific slab on the user's behalf.
type ReserveTyped struct {
	InstrumentIdx uint16
	Side          uint8
	Qty           *big.Int
	LimitPrice    *big.Int
	TTLMs         *big.Int
	RouteID       *big.Int
	Owner         common.Address
}

// CancelTyped authorizes canceling a resting order or an open
// reservation (the TargetID discriminates which).
type CancelTyped struct {
	TargetID *big.Int
	Nonce    *big.Int
	Owner    common.Address
}

type EIP712Signer struct{ domain Domain }

func NewEIP712Signer(domain Domain) *EIP712Signer { return &EIP712Signer{domain: domain} }

func (e *EIP712Signer) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

func (e *EIP712Signer) digest(types apitypes.Types, primary string, message apitypes.TypedDataMessage) ([]byte, error) {
	td := apitypes.TypedData{
		Types:       types,
		PrimaryType: primary,
		Domain:      e.typedDataDomain(),
		Message:     message,
	}
	domainSep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("xsign: hash domain: %w", err)
	}
	msgHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("xsign: hash message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSep), string(msgHash)))
	return crypto.Keccak256Hash(raw).Bytes(), nil
}

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func (e *EIP712Signer) HashPlaceOrder(o *PlaceOrderTyped) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": eip712DomainType,
		"PlaceOrder": []apitypes.Type{
			{Name: "instrumentIdx", Type: "uint16"},
			{Name: "side", Type: "uint8"},
			{Name: "price", Type: "uint256"},
			{Name: "qty", Type: "uint256"},
			{Name: "tif", Type: "uint8"},
			{Name: "makerClass", Type: "uint8"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
	msg := apitypes.TypedDataMessage{
		"instrumentIdx": fmt.Sprintf("%d", o.InstrumentIdx),
		"side":          fmt.Sprintf("%d", o.Side),
		"price":         o.Price.String(),
		"qty":           o.Qty.String(),
		"tif":           fmt.Sprintf("%d", o.TIF),
		"makerClass":    fmt.Sprintf("%d", o.MakerClass),
		"nonce":         o.Nonce.String(),
		"deadline":      o.Deadline.String(),
		"owner":         o.Owner.Hex(),
	}
	return e.digest(types, "PlaceOrder", msg)
}

func (e *EIP712Signer) SignPlaceOrder(signer *Signer, o *PlaceOrderTyped) ([]byte, error) {
	hash, err := e.HashPlaceOrder(o)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

func (e *EIP712Signer) VerifyPlaceOrder(o *PlaceOrderTyped, signature []byte) (bool, error) {
	hash, err := e.HashPlaceOrder(o)
	if err != nil {
		return false, err
	}
	addr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return addr == o.Owner, nil
}

func (e *EIP712Signer) HashReserve(r *ReserveTyped) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": eip712DomainType,
		"Reserve": []apitypes.Type{
			{Name: "instrumentIdx", Type: "uint16"},
			{Name: "side", Type: "uint8"},
			{Name: "qty", Type: "uint256"},
			{Name: "limitPrice", Type: "uint256"},
			{Name: "ttlMs", Type: "uint256"},
			{Name: "routeId", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
	msg := apitypes.TypedDataMessage{
		"instrumentIdx": fmt.Sprintf("%d", r.InstrumentIdx),
		"side":          fmt.Sprintf("%d", r.Side),
		"qty":           r.Qty.String(),
		"limitPrice":    r.LimitPrice.String(),
		"ttlMs":         r.TTLMs.String(),
		"routeId":       r.RouteID.String(),
		"owner":         r.Owner.Hex(),
	}
	return e.digest(types, "Reserve", msg)
}

func (e *EIP712Signer) SignReserve(signer *Signer, r *ReserveTyped) ([]byte, error) {
	hash, err := e.HashReserve(r)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}

func (e *EIP712Signer) HashCancel(c *CancelTyped) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": eip712DomainType,
		"Cancel": []apitypes.Type{
			{Name: "targetId", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
	msg := apitypes.TypedDataMessage{
		"targetId": c.TargetID.String(),
		"nonce":    c.Nonce.String(),
		"owner":    c.Owner.Hex(),
	}
	return e.digest(types, "Cancel", msg)
}

func (e *EIP712Signer) SignCancel(signer *Signer, c *CancelTyped) ([]byte, error) {
	hash, err := e.HashCancel(c)
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}
