package termination_test

import (
	"fmt"
	"testing"

	"github.com/NirjharDeb/treedone/pgas"
	"github.com/NirjharDeb/treedone/pgas/inproc"
	"github.com/NirjharDeb/treedone/termination"
)

// One full detection round per iteration: plan, allocate, publish, fan-in,
// fan-out, gate, barrier exit. State is single-shot, so the allocation cost
// is part of the round by construction.
func BenchmarkDetect(b *testing.B) {
	for _, bc := range []struct {
		npes    int
		leaf    int
		branch  int
		variant termination.Variant
	}{
		{npes: 8, leaf: 8, branch: 8, variant: termination.VariantHStar},
		{npes: 64, leaf: 8, branch: 8, variant: termination.VariantHStar},
		{npes: 64, leaf: 8, branch: 8, variant: termination.VariantStar},
		{npes: 64, leaf: 2, branch: 2, variant: termination.VariantTree},
		{npes: 64, leaf: 8, branch: 8, variant: termination.VariantDynamic},
		{npes: 70, leaf: 8, branch: 8, variant: termination.VariantHStar},
	} {
		name := fmt.Sprintf("%s/npes=%d/leaf=%d/branch=%d", bc.variant, bc.npes, bc.leaf, bc.branch)
		b.Run(name, func(b *testing.B) {
			opt := termination.Options{
				LeafGroupSize: bc.leaf,
				BranchFactor:  bc.branch,
				Variant:       bc.variant,
			}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				world, err := inproc.New(bc.npes)
				if err != nil {
					b.Fatal(err)
				}
				status, err := world.Run(func(pe pgas.PE) error {
					eng, err := termination.New(pe, opt)
					if err != nil {
						return err
					}
					_, err = eng.Detect()
					return err
				})
				if err != nil || status != 0 {
					b.Fatalf("status=%d err=%v", status, err)
				}
			}
		})
	}
}
