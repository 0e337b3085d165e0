package constants

// NotFound is stored in any entity field the extractor could not locate.
const NotFound = "Not found"

// Per-row test verdicts.
const (
	VerdictPass    = "Pass"
	VerdictFail    = "Fail"
	VerdictUnknown = "unknown"
)

// Yes/No flags in the validated record.
const (
	Yes = "Yes"
	No  = "No"
)

// Designations used when a signatory is inferred from a signature alone.
const (
	DesignationQAApproved = "QA APPROVED"
	DesignationQCPassed   = "QC PASSED"
	DesignationSignatory  = "SIGNATORY"
)

// DesignationKeywords are the role markers that identify a signatory line.
// Longer phrases come first so that matching prefers them.
var DesignationKeywords = []string{
	"QA APPROVED",
	"QC PASSED",
	"QUALITY ASSURANCE",
	"QUALITY CONTROL",
	"LABORATORY MANAGER",
	"TECHNICAL MANAGER",
	"QUALITY MANAGER",
	"GENERAL MANAGER",
	"CERTIFIED BY",
	"ISSUED BY",
	"APPROVED BY",
	"CHECKED BY",
	"VERIFIED BY",
	"REVIEWED BY",
	"TESTED BY",
	"AUTHORISED BY",
	"AUTHORIZED BY",
	"ANALYST",
	"CHEMIST",
	"MICROBIOLOGIST",
	"MANAGER",
	"DIRECTOR",
	"OFFICER",
	"SUPERVISOR",
	"SIGNATORY",
	"HEAD OF",
}
