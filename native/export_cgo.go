//go:build cgo

package native

/*
#include <stdint.h>
*/
import "C"

//export phasebridgePredict
func phasebridgePredict(pmc1, pmc2, pmc3, pmc4, pmc5 C.int64_t, cluster C.int32_t) C.int32_t {
	return C.int32_t(Predict(int64(pmc1), int64(pmc2), int64(pmc3), int64(pmc4), int64(pmc5), int32(cluster)))
}
