package mets

import "encoding/xml"

// METS document shapes. Only the structures the compiler emits are modeled:
// header, one issue-level descriptive section, checksummed file groups, and
// the physical/logical structure maps.

const (
	metsNamespace  = "http://www.loc.gov/METS/"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
	modsNamespace  = "http://www.loc.gov/mods/v3"
)

type metsDoc struct {
	XMLName   xml.Name   `xml:"mets"`
	Namespace string     `xml:"xmlns,attr"`
	Xlink     string     `xml:"xmlns:xlink,attr"`
	ObjID     string     `xml:"OBJID,attr"`
	Label     string     `xml:"LABEL,attr,omitempty"`
	Type      string     `xml:"TYPE,attr"`
	Header    metsHdr    `xml:"metsHdr"`
	DmdSecs   []dmdSec   `xml:"dmdSec"`
	FileSec   fileSec    `xml:"fileSec"`
	StructMap []structMap `xml:"structMap"`
}

type metsHdr struct {
	CreateDate string `xml:"CREATEDATE,attr"`
	Agent      agent  `xml:"agent"`
}

type agent struct {
	Role string `xml:"ROLE,attr"`
	Type string `xml:"TYPE,attr"`
	Name string `xml:"name"`
}

type dmdSec struct {
	ID     string `xml:"ID,attr"`
	MdWrap mdWrap `xml:"mdWrap"`
}

type mdWrap struct {
	MDType  string  `xml:"MDTYPE,attr"`
	XMLData xmlData `xml:"xmlData"`
}

type xmlData struct {
	MODS issueMODS `xml:"mods"`
}

// issueMODS is the inline issue-level record: title, issuance date, and one
// constituent entry per included article.
type issueMODS struct {
	Namespace    string        `xml:"xmlns,attr"`
	TitleInfo    modsTitle     `xml:"titleInfo"`
	Type         string        `xml:"typeOfResource"`
	OriginInfo   *issueOrigin  `xml:"originInfo,omitempty"`
	Constituents []constituent `xml:"relatedItem"`
}

type modsTitle struct {
	Title string `xml:"title"`
}

type issueOrigin struct {
	DateIssued string `xml:"dateIssued"`
	Publisher  string `xml:"publisher,omitempty"`
}

type constituent struct {
	Type       string       `xml:"type,attr"`
	TitleInfo  modsTitle    `xml:"titleInfo"`
	Identifier *constituentID `xml:"identifier,omitempty"`
}

type constituentID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type fileSec struct {
	Groups []fileGrp `xml:"fileGrp"`
}

type fileGrp struct {
	Use   string     `xml:"USE,attr"`
	Files []metsFile `xml:"file"`
}

type metsFile struct {
	ID           string `xml:"ID,attr"`
	MimeType     string `xml:"MIMETYPE,attr"`
	Checksum     string `xml:"CHECKSUM,attr"`
	ChecksumType string `xml:"CHECKSUMTYPE,attr"`
	Size         int64  `xml:"SIZE,attr"`
	FLocat       fLocat `xml:"FLocat"`
}

type fLocat struct {
	LocType string `xml:"LOCTYPE,attr"`
	Href    string `xml:"xlink:href,attr"`
}

type structMap struct {
	Type string `xml:"TYPE,attr"`
	Div  div    `xml:"div"`
}

type div struct {
	Type  string `xml:"TYPE,attr"`
	Label string `xml:"LABEL,attr,omitempty"`
	Order int    `xml:"ORDER,attr,omitempty"`
	DmdID string `xml:"DMDID,attr,omitempty"`
	Fptrs []fptr `xml:"fptr"`
	Divs  []div  `xml:"div"`
}

type fptr struct {
	FileID string `xml:"FILEID,attr"`
}
