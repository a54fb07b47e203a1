package core

import (
	"bytes"
	"testing"
)

func TestCovenantEncodeDecodeRoundTrip(t *testing.T) {
	nameHash := NameHash("example")
	var blind Hash
	blind[0] = 0xAB

	cases := []Covenant{
		NewOpenCovenant(nameHash, "example"),
		NewBidCovenant(nameHash, 3, "example", blind),
		NewRevealCovenant(nameHash, 3, blind),
		NewRedeemCovenant(nameHash, 3),
		NewRegisterCovenant(nameHash, 3, []byte("A 1.2.3.4"), blind),
		NewUpdateCovenant(nameHash, 3, []byte("A 5.6.7.8")),
		NewRenewCovenant(nameHash, 3, blind),
		NewTransferCovenant(nameHash, 3, 0, Address{1, 2, 3}),
		NewFinalizeCovenant(nameHash, 3, "example", 0x1, 2, 1, blind),
		NewRevokeCovenant(nameHash, 3),
	}

	for _, c := range cases {
		enc, err := c.Encode()
		if err != nil {
			t.Fatalf("encode %s: %v", c.Type, err)
		}
		dec, err := DecodeCovenant(enc)
		if err != nil {
			t.Fatalf("decode %s: %v", c.Type, err)
		}
		if dec.Type != c.Type {
			t.Fatalf("type mismatch: want %s got %s", c.Type, dec.Type)
		}
		if len(dec.Items) != len(c.Items) {
			t.Fatalf("%s: item count mismatch: want %d got %d", c.Type, len(c.Items), len(dec.Items))
		}
		for i := range c.Items {
			if !bytes.Equal(c.Items[i], dec.Items[i]) {
				t.Fatalf("%s: item %d mismatch: want %x got %x", c.Type, i, c.Items[i], dec.Items[i])
			}
		}
		reenc, err := dec.Encode()
		if err != nil {
			t.Fatalf("re-encode %s: %v", c.Type, err)
		}
		if !bytes.Equal(enc, reenc) {
			t.Fatalf("%s: decode-then-re-encode changed bytes", c.Type)
		}
	}
}

func TestCovenantAccessors(t *testing.T) {
	nameHash := NameHash("example")
	blind := Hash{0xCD}

	bid := NewBidCovenant(nameHash, 7, "example", blind)
	if bid.NameHash() != nameHash {
		t.Fatalf("bid NameHash mismatch")
	}
	if bid.Epoch() != 7 {
		t.Fatalf("bid Epoch mismatch, got %d", bid.Epoch())
	}
	if bid.RawName() != "example" {
		t.Fatalf("bid RawName mismatch, got %q", bid.RawName())
	}
	if bid.Blind() != blind {
		t.Fatalf("bid Blind mismatch")
	}

	nonce := Hash{0xEF}
	reveal := NewRevealCovenant(nameHash, 7, nonce)
	if reveal.Nonce() != nonce {
		t.Fatalf("reveal Nonce mismatch")
	}

	update := NewUpdateCovenant(nameHash, 7, []byte("A 1.1.1.1"))
	if update.IsCancel() {
		t.Fatalf("non-empty resource reported as cancel")
	}
	cancel := NewUpdateCovenant(nameHash, 7, nil)
	if !cancel.IsCancel() {
		t.Fatalf("empty resource not reported as cancel")
	}

	renewalHash := Hash{0x11}
	register := NewRegisterCovenant(nameHash, 7, []byte("A 2.2.2.2"), renewalHash)
	if register.RenewalBlockHash() != renewalHash {
		t.Fatalf("register RenewalBlockHash mismatch")
	}
	if !register.IsOwnershipCovenant() {
		t.Fatalf("register should be an ownership covenant")
	}

	addr := Address{9, 9, 9}
	transfer := NewTransferCovenant(nameHash, 7, 2, addr)
	if transfer.AddrVersion() != 2 {
		t.Fatalf("transfer AddrVersion mismatch, got %d", transfer.AddrVersion())
	}
	if transfer.AddrHash() != addr {
		t.Fatalf("transfer AddrHash mismatch")
	}

	finalize := NewFinalizeCovenant(nameHash, 7, "example", 0x1, 4, 2, renewalHash)
	if !finalize.Weak() {
		t.Fatalf("finalize Weak flag not set")
	}
	if finalize.Claimed() != 4 || finalize.Renewals() != 2 {
		t.Fatalf("finalize Claimed/Renewals mismatch: %d/%d", finalize.Claimed(), finalize.Renewals())
	}

	if (Covenant{}).IsOwnershipCovenant() {
		t.Fatalf("zero-value covenant should not be an ownership covenant")
	}
}

func TestCovenantClone(t *testing.T) {
	c := NewUpdateCovenant(NameHash("example"), 1, []byte("A 1.1.1.1"))
	clone := c.Clone()
	clone.Items[2][0] = 'B'
	if c.Items[2][0] == 'B' {
		t.Fatalf("Clone shares backing array with original")
	}
}
