package nfse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Namespace do leiaute nacional da NFS-e (DPS v1.00).
const (
	NsNFSe     = "http://www.sped.fazenda.gov.br/nfse"
	dpsVersion = "1.00"
	verAplic   = "1.00"

	// Limite do campo xDescServ no schema.
	maxServiceDescription = 2000
)

// Fuso do horário de emissão exigido pelo leiaute (TSDateTimeUTC com offset
// explícito -03:00).
var tzBrasil = time.FixedZone("-03:00", -3*60*60)

// XMLBuilder monta a DPS (Declaração de Prestação de Serviço) do leiaute
// nacional, sem assinatura.
type XMLBuilder struct{}

// NewXMLBuilder cria o builder.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{}
}

// Build gera o documento DPS. A data de competência deriva do mesmo instante
// de emissão já normalizado, para nunca divergirem.
func (b *XMLBuilder) Build(in *DPSInput) (*BuildResult, error) {
	if in == nil || in.Issuer == nil {
		return nil, fmt.Errorf("nfse: emissor ausente na montagem da DPS")
	}

	issuerCNPJ := digitsOnly(in.Issuer.CNPJ)
	takerDoc := digitsOnly(in.TakerDocument)
	emission := EmissionTime(in.IssuedAt, time.Now())
	dpsID := DPSID(in.Issuer.CityCode, issuerCNPJ, in.Series, in.Number)

	serieNum, err := strconv.Atoi(strings.TrimSpace(in.Series))
	if err != nil {
		return nil, fmt.Errorf("nfse: série %q não numérica: %w", in.Series, err)
	}

	takerCity := digitsOnly(in.TakerCityCode)
	if takerCity == "" {
		takerCity = in.Issuer.CityCode
	}

	desc := Sanitize(in.ServiceDescription)
	if extra := Sanitize(in.AdditionalInfo); extra != "" {
		desc = desc + " | " + extra
	}
	if len(desc) > maxServiceDescription {
		cut := maxServiceDescription
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}

	issAmount := in.Amount.Mul(in.Issuer.ISSRate).Div(decimal.NewFromInt(100))

	doc := etree.NewDocument()
	root := doc.CreateElement("DPS")
	root.CreateAttr("xmlns", NsNFSe)
	root.CreateAttr("versao", dpsVersion)

	inf := root.CreateElement("infDPS")
	inf.CreateAttr("Id", dpsID)
	inf.CreateElement("tpAmb").SetText(strconv.Itoa(in.Issuer.Environment))
	inf.CreateElement("dhEmi").SetText(emission.Format("2006-01-02T15:04:05-07:00"))
	inf.CreateElement("verAplic").SetText(verAplic)
	inf.CreateElement("serie").SetText(strconv.Itoa(serieNum))
	inf.CreateElement("nDPS").SetText(strconv.FormatInt(in.Number, 10))
	inf.CreateElement("dCompet").SetText(emission.Format("2006-01-02"))
	inf.CreateElement("tpEmit").SetText("1")
	inf.CreateElement("cLocEmi").SetText(in.Issuer.CityCode)

	prest := inf.CreateElement("prest")
	prest.CreateElement("CNPJ").SetText(issuerCNPJ)
	if im := digitsOnly(in.Issuer.MunicipalReg); im != "" {
		prest.CreateElement("IM").SetText(im)
	}
	// opSimpNac 3 = ME/EPP do Simples; regApTribSN 1 = tributos todos no SN;
	// regEspTrib 0 = sem regime especial.
	reg := prest.CreateElement("regTrib")
	reg.CreateElement("opSimpNac").SetText("3")
	reg.CreateElement("regApTribSN").SetText("1")
	reg.CreateElement("regEspTrib").SetText("0")

	toma := inf.CreateElement("toma")
	if len(takerDoc) == 11 {
		toma.CreateElement("CPF").SetText(takerDoc)
	} else {
		toma.CreateElement("CNPJ").SetText(takerDoc)
	}
	toma.CreateElement("xNome").SetText(Sanitize(in.TakerName))
	if fone := CleanPhone(in.TakerPhone); fone != "" {
		toma.CreateElement("fone").SetText(fone)
	}
	if in.TakerEmail != "" {
		toma.CreateElement("email").SetText(in.TakerEmail)
	}

	serv := inf.CreateElement("serv")
	loc := serv.CreateElement("locPrest")
	loc.CreateElement("cLocPrestacao").SetText(takerCity)
	cserv := serv.CreateElement("cServ")
	cserv.CreateElement("cTribNac").SetText(NormalizeNationalTaxCode(in.Issuer.ServiceCode))
	if mun := NormalizeMunicipalTaxCode(in.Issuer.MunicipalCode); mun != "" {
		cserv.CreateElement("cTribMun").SetText(mun)
	}
	cserv.CreateElement("xDescServ").SetText(desc)

	valores := inf.CreateElement("valores")
	vs := valores.CreateElement("vServPrest")
	vs.CreateElement("vServ").SetText(formatDecimal(in.Amount))
	trib := valores.CreateElement("trib")
	tribMun := trib.CreateElement("tribMun")
	tribMun.CreateElement("tribISSQN").SetText("1") // 1 = tributável
	tribMun.CreateElement("cLocIncid").SetText(in.Issuer.CityCode)
	tribMun.CreateElement("pAliq").SetText(formatDecimal(in.Issuer.ISSRate))
	tribMun.CreateElement("vISSQN").SetText(formatDecimal(issAmount))
	tribMun.CreateElement("tpRetISSQN").SetText("1") // 1 = não retido
	tot := trib.CreateElement("totTrib")
	tot.CreateElement("indTotTrib").SetText("0")

	xmlBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfse: serializar DPS: %w", err)
	}
	return &BuildResult{XML: xmlBytes, DPSID: dpsID}, nil
}

// DPSID monta o identificador da DPS:
// "DPS" + município(7) + tipo de inscrição(1, 2=CNPJ) + CNPJ(14) + série(5) + número(15).
func DPSID(cityCode, cnpj, series string, number int64) string {
	serieNum, _ := strconv.Atoi(strings.TrimSpace(series))
	return fmt.Sprintf("DPS%s2%s%05d%015d", digitsOnly(cityCode), digitsOnly(cnpj), serieNum, number)
}

// EmissionTime normaliza o instante de emissão para UTC-3 e trava no presente
// quando estiver no futuro (o schema rejeita dhEmi futuro).
func EmissionTime(issued, now time.Time) time.Time {
	t := issued.In(tzBrasil)
	n := now.In(tzBrasil)
	if t.After(n) {
		t = n
	}
	return t.Truncate(time.Second)
}

// NormalizeNationalTaxCode força o código de tributação nacional a 6 dígitos.
// O item 1.07.01 costuma chegar como "10701" (5 dígitos, completa à esquerda)
// ou "0107" (4 dígitos, subitem "00" à direita).
func NormalizeNationalTaxCode(code string) string {
	d := digitsOnly(code)
	switch {
	case d == "" || len(d) >= 6:
		return d
	case len(d) == 4:
		return d + "00"
	default:
		return strings.Repeat("0", 6-len(d)) + d
	}
}

// NormalizeMunicipalTaxCode extrai o último segmento de códigos pontuados
// (ex.: "14.02.01.501" -> "501") e mantém só dígitos.
func NormalizeMunicipalTaxCode(code string) string {
	c := strings.TrimSpace(code)
	if i := strings.LastIndex(c, "."); i >= 0 {
		c = c[i+1:]
	}
	return digitsOnly(c)
}

// CleanPhone deixa só dígitos, remove o DDI 55 quando sobra mais que DDD +
// número e corta em 11 posições.
func CleanPhone(phone string) string {
	d := digitsOnly(phone)
	if len(d) > 11 && strings.HasPrefix(d, "55") {
		d = d[2:]
	}
	if len(d) > 11 {
		d = d[:11]
	}
	return d
}

// Sanitize remove os caracteres que quebram a validação do schema ('&' vira
// "e"; '<', '>', '"', '#', '%' e caracteres de controle caem), descarta
// acentos e colapsa espaços.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "&", "e")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '#', '%':
			return -1
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = stripDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripDiacritics decompõe e descarta as marcas de combinação (ç -> c, ã -> a).
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
