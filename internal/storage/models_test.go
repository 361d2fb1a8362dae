package storage

import (
	"testing"
	"time"

	"bead-road-feed/internal/road"
)

func TestOutcomeRecordConversion(t *testing.T) {
	observed := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
	rec := road.Record{
		Height:    1234567,
		Hash:      "0x00000000000000000000000000000000000000000000000000000000000000a7",
		Value:     7,
		Parity:    road.ParityOdd,
		Size:      road.SizeBig,
		Timestamp: observed,
	}

	row := FromRoadRecord(rec)
	if row.Parity != string(road.ParityOdd) || row.Size != string(road.SizeBig) {
		t.Fatalf("归档行的枚举列应为字符串形式, 实际 parity=%q size=%q", row.Parity, row.Size)
	}
	if row.CreatedAt != (time.Time{}) {
		t.Fatalf("created_at 由数据库默认值填充, 转换时应为零值, 实际 %v", row.CreatedAt)
	}

	back := row.ToRoadRecord()
	if back != rec {
		t.Fatalf("归档行还原后应与原记录一致, 实际 %+v", back)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("还原后的记录应通过校验: %v", err)
	}
}
