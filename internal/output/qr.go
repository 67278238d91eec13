package output

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// PaymentURI returns an EIP-681 payment link for address on chainID.
func PaymentURI(address string, chainID int64) string {
	if chainID <= 0 {
		return "ethereum:" + address
	}
	return fmt.Sprintf("ethereum:%s@%d", address, chainID)
}

// CanRenderQR reports whether w is a terminal that can show a QR code.
func CanRenderQR(w io.Writer) bool {
	return isTerminal(w)
}

// RenderQR draws data as a QR code with half-height blocks. Nothing is
// written when w is not a terminal.
func RenderQR(w io.Writer, data string) {
	if !CanRenderQR(w) {
		return
	}

	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          qr.L,
		Writer:         w,
		QuietZone:      1,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
}
