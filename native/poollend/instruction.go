package poollend

import "fmt"

// Tag selects the operation encoded in an instruction.
type Tag uint8

const (
	TagContribute Tag = iota
	TagWithdrawLenderBalance
	TagWithdrawCollected
	TagTransferVaultOwnership
	TagInitializeLenderLedger
	TagInitializeBorrowerRecord
	TagInitializeGuarantorRecord
	TagPayInstallment
	TagInitializeLoan
	TagAirdropTestFunds
	TagTransferAirdropVaultOwnership
	TagReturnFundsToLenders
	TagCloseLoanRecord
)

var tagNames = [...]string{
	"Contribute",
	"WithdrawLenderBalance",
	"WithdrawCollected",
	"TransferVaultOwnership",
	"InitializeLenderLedger",
	"InitializeBorrowerRecord",
	"InitializeGuarantorRecord",
	"PayInstallment",
	"InitializeLoan",
	"AirdropTestFunds",
	"TransferAirdropVaultOwnership",
	"ReturnFundsToLenders",
	"CloseLoanRecord",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Instruction is a decoded operation request. Only the fields relevant to
// Tag are populated.
type Instruction struct {
	Tag                Tag
	Amount             uint64
	LenderID           uint32
	FirstRepaymentDays uint16
	InstallmentCount   uint16
	FundraisingDays    uint16
	TargetAmount       uint64
	Count              uint16
}

// payload sizes per tag; tags absent from the map carry no payload.
var payloadSizes = map[Tag]int{
	TagContribute:            12,
	TagWithdrawLenderBalance: 4,
	TagPayInstallment:        8,
	TagInitializeLoan:        14,
	TagReturnFundsToLenders:  2,
}

// DecodeInstruction parses the fixed-offset little-endian request format.
// Trailing bytes are ignored.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, ErrTruncatedPayload
	}
	ins := Instruction{Tag: Tag(data[0])}
	if ins.Tag > TagCloseLoanRecord {
		return Instruction{}, fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
	payload := data[1:]
	if len(payload) < payloadSizes[ins.Tag] {
		return Instruction{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncatedPayload, ins.Tag, payloadSizes[ins.Tag], len(payload))
	}
	switch ins.Tag {
	case TagContribute:
		ins.Amount = le.Uint64(payload[0:8])
		ins.LenderID = le.Uint32(payload[8:12])
	case TagWithdrawLenderBalance:
		ins.LenderID = le.Uint32(payload[0:4])
	case TagPayInstallment:
		ins.Amount = le.Uint64(payload[0:8])
	case TagInitializeLoan:
		ins.FirstRepaymentDays = le.Uint16(payload[0:2])
		ins.InstallmentCount = le.Uint16(payload[2:4])
		ins.FundraisingDays = le.Uint16(payload[4:6])
		ins.TargetAmount = le.Uint64(payload[6:14])
	case TagReturnFundsToLenders:
		ins.Count = le.Uint16(payload[0:2])
	}
	return ins, nil
}

// Encode renders the instruction in the request format.
func (ins Instruction) Encode() []byte {
	out := make([]byte, 1+payloadSizes[ins.Tag])
	out[0] = byte(ins.Tag)
	payload := out[1:]
	switch ins.Tag {
	case TagContribute:
		le.PutUint64(payload[0:8], ins.Amount)
		le.PutUint32(payload[8:12], ins.LenderID)
	case TagWithdrawLenderBalance:
		le.PutUint32(payload[0:4], ins.LenderID)
	case TagPayInstallment:
		le.PutUint64(payload[0:8], ins.Amount)
	case TagInitializeLoan:
		le.PutUint16(payload[0:2], ins.FirstRepaymentDays)
		le.PutUint16(payload[2:4], ins.InstallmentCount)
		le.PutUint16(payload[4:6], ins.FundraisingDays)
		le.PutUint64(payload[6:14], ins.TargetAmount)
	case TagReturnFundsToLenders:
		le.PutUint16(payload[0:2], ins.Count)
	}
	return out
}

// ParseTag maps an operation name (case-sensitive, as printed by Tag.String)
// back to its tag.
func ParseTag(name string) (Tag, bool) {
	for i, n := range tagNames {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}
