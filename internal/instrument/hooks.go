package instrument

import (
	"fmt"
	"strings"
)

// Markers are the fragments every instrumented file contains.
const (
	HeaderInclude = "#include \"llvm/Transforms/Utils/RuntimeChecker.h\"\n"
	GlobalDecl    = "namespace { RuntimeChecker *RC = nullptr; }\n"
	CheckMarker   = "RC->startCheck();"
	InitMarker    = "RC = new RuntimeChecker"
)

var markers = []struct {
	text string
	name string
}{
	{HeaderInclude, "runtime header include"},
	{GlobalDecl, "global checker declaration"},
	{CheckMarker, "check call"},
	{InitMarker, "checker initialization"},
}

// Missing lists the markers src lacks, in a fixed order. An empty result
// means src is instrumented.
func Missing(src []byte) []string {
	var missing []string
	s := string(src)
	for _, m := range markers {
		if !strings.Contains(s, m.text) {
			missing = append(missing, m.name)
		}
	}
	return missing
}

// C++ spellings of the checker's construct kinds.
const (
	cxxCreating = "ConstructKind::Creating"
	cxxCloning  = "ConstructKind::Cloning"
	cxxMoving   = "ConstructKind::Moving"
)

func initHook(target, file string) string {
	return fmt.Sprintf("RC = new RuntimeChecker(%s, %q);\n  ", target, file)
}

const (
	checkOpen  = "{ RC->startCheck(); delete RC; "
	blockClose = " }"
)

func trackDst(dst, origin, kind string, line int, dstName, originName string) string {
	return fmt.Sprintf("RC->trackDebugLocDst(%s, %s, %s, %d, %q, %q);", dst, origin, kind, line, dstName, originName)
}

func trackSrc(line int, dstName, srcName string) string {
	return fmt.Sprintf("RC->trackDebugLocSrc(DebugLocDst, DebugLocSrc, %d, %q, %q);", line, dstName, srcName)
}

func trackInsertion(inst, pos string, line int, instName, posName string) string {
	return fmt.Sprintf("RC->trackInsertion(%s, %s, %d, %q, %q);", inst, pos, line, instName, posName)
}

func trackPreserving(dst string, line int, dstName string) string {
	return fmt.Sprintf("RC->trackDebugLocPreserving(%s, nullptr, %d, %q, \"nullptr\");", dst, line, dstName)
}

func trackMerging(dst string, line int) string {
	return fmt.Sprintf("RC->trackDebugLocMerging(%s, nullptr, nullptr, %d, \"\", \"\", \"\");", dst, line)
}

func trackDropping(dst string, line int, dstName string) string {
	return fmt.Sprintf("RC->trackDebugLocDropping(%s, %d, %q);", dst, line, dstName)
}
