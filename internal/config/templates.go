package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "mdpctl":
		return mdpctlTemplate, nil
	case "schema":
		return schemaTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const mdpctlTemplate = `name = "mdpctl"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
schema_file = "schema.toml"
api_token = ""
strict = false
log_level = "info"
workers = 4
max_message_bytes = 4096
max_packet_bytes = 65535
max_messages = 256
`

const schemaTemplate = `schema_id = 1
version = 9

[[templates]]
id = 12
name = "AdminHeartbeat12"
block_length = 0

[[templates]]
id = 30
name = "SecurityStatus30"
block_length = 30
fields = [
  { name = "TransactTime", type = "uint64" },
  { name = "SecurityGroup", type = "string", length = 6 },
  { name = "Asset", type = "string", length = 6 },
  { name = "SecurityID", type = "int32" },
  { name = "TradeDate", type = "uint16" },
  { name = "MatchEventIndicator", type = "uint8" },
  { name = "SecurityTradingStatus", type = "uint8" },
  { name = "HaltReason", type = "uint8" },
  { name = "SecurityTradingEvent", type = "uint8" },
]

[[templates]]
id = 46
name = "MDIncrementalRefreshBook46"
block_length = 11
fields = [
  { name = "TransactTime", type = "uint64" },
  { name = "MatchEventIndicator", type = "uint8" },
]

[[templates.groups]]
name = "MDEntries"
block_length = 32
fields = [
  { name = "MDEntryPx", type = "price9" },
  { name = "MDEntrySize", type = "int32" },
  { name = "SecurityID", type = "int32" },
  { name = "RptSeq", type = "uint32" },
  { name = "NumberOfOrders", type = "int32" },
  { name = "MDPriceLevel", type = "uint8" },
  { name = "MDUpdateAction", type = "uint8" },
  { name = "MDEntryType", type = "char" },
]

[[templates.groups]]
name = "OrderIDEntries"
block_length = 24
fields = [
  { name = "OrderID", type = "uint64" },
  { name = "MDOrderPriority", type = "uint64" },
  { name = "MDDisplayQty", type = "int32" },
  { name = "ReferenceID", type = "uint8" },
  { name = "OrderUpdateAction", type = "uint8" },
]

[[templates]]
id = 48
name = "MDIncrementalRefreshTradeSummary48"
block_length = 11
fields = [
  { name = "TransactTime", type = "uint64" },
  { name = "MatchEventIndicator", type = "uint8" },
]

[[templates.groups]]
name = "MDEntries"
block_length = 32
fields = [
  { name = "MDEntryPx", type = "price9" },
  { name = "MDEntrySize", type = "int32" },
  { name = "SecurityID", type = "int32" },
  { name = "RptSeq", type = "uint32" },
  { name = "NumberOfOrders", type = "int32" },
  { name = "AggressorSide", type = "uint8" },
  { name = "MDUpdateAction", type = "uint8" },
  { name = "MDTradeEntryID", type = "uint32" },
]

[[templates.groups]]
name = "OrderIDEntries"
block_length = 16
fields = [
  { name = "OrderID", type = "uint64" },
  { name = "LastQty", type = "int32" },
]

[[templates]]
id = 900
name = "SpreadFills900"
block_length = 9
fields = [
  { name = "TransactTime", type = "uint64" },
  { name = "MatchEventIndicator", type = "uint8" },
]

[[templates.groups]]
name = "Legs"
block_length = 6
fields = [
  { name = "LegSecurityID", type = "int32" },
  { name = "LegSide", type = "uint8" },
]

[[templates.groups.groups]]
name = "Fills"
block_length = 8
fields = [
  { name = "FillQty", type = "int32" },
  { name = "FillID", type = "uint32" },
]
`
