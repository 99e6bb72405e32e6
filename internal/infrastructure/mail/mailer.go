// Envio do e-mail de fatura (boleto + NFS-e) via SMTP.

package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/pkg/config"
)

// Mailer envia a notificação de fatura ao tomador.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer monta o mailer com a configuração SMTP.
func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// SendInvoice envia a fatura ao e-mail do cliente com os links do boleto e da
// NFS-e. Sem e-mail cadastrado é erro (o chamador registra e segue).
func (m *Mailer) SendInvoice(inv *entity.Invoice, boletoURL, accessKey string) error {
	if inv.ClientEmail == "" {
		return fmt.Errorf("mail: cliente %s sem e-mail cadastrado", inv.ClientName)
	}

	competence := fmt.Sprintf("%02d/%d", inv.CompetenceMonth, inv.CompetenceYear)
	subject := fmt.Sprintf("Fatura Disponível - %s - Ref. %s", inv.ClientName, competence)

	if boletoURL == "" {
		boletoURL = "Link não disponível"
	}
	nfseLink := "Link não disponível"
	if accessKey != "" {
		nfseLink = "https://www.nfse.gov.br/ConsultaPublica/?chave=" + accessKey
	}

	body := fmt.Sprintf(
		"Olá, %s!\n\n"+
			"Sua fatura %s (competência %s) está disponível.\n\n"+
			"Valor: R$ %s\n"+
			"Vencimento: %s\n\n"+
			"Boleto: %s\n"+
			"Nota fiscal: %s\n",
		inv.ClientName, inv.Number, competence,
		inv.Amount.StringFixed(2), inv.DueDate.Format("02/01/2006"),
		boletoURL, nfseLink,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", inv.ClientEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: enviar fatura %s: %w", inv.Number, err)
	}
	return nil
}
