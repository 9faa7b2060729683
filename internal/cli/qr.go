package cli

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/anonchat/cli/internal/config"
	"github.com/anonchat/cli/internal/storage"
)

// QRCommand prints the local uid as a terminal QR code so another device can
// add this account as a friend by scanning it.
func QRCommand(cfg *config.Config) error {
	id, ok, err := storage.LoadIdentity(cfg.HomeDir)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	if !ok {
		return fmt.Errorf("no saved identity; run %q first", "anonchat register <nickname>")
	}

	data := IdentityURL(id.UID)
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	fmt.Printf("Scan to add %s as a friend:\n", id.Nickname)
	fmt.Println(qr.ToSmallString(false))
	fmt.Println(data)
	return nil
}

// IdentityURL encodes a uid as a shareable anonchat link.
func IdentityURL(uid string) string {
	return fmt.Sprintf("anonchat://user?%s", uid)
}
