package main

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/lox/hotpotato/internal/potato"
)

// AccountCmd prints the account a name maps to
type AccountCmd struct {
	Name string `arg:"" help:"Player name, or an account in hex"`
	QR   bool   `default:"true" negatable:"" help:"Also print the account as a QR code"`
}

func (c *AccountCmd) Run() error {
	account := resolveAccount(c.Name)
	fmt.Println(account)
	if !c.QR {
		return nil
	}
	code, err := accountQR(account)
	if err != nil {
		return err
	}
	fmt.Print(code)
	return nil
}

// accountQR renders the hex account as a QR code in block characters
func accountQR(account potato.Account) (string, error) {
	q, err := qrcode.New(account.String(), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}
