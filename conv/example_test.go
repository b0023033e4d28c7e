package conv_test

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-fold/conv"
	"github.com/cwbudde/algo-fold/device/host"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

func ExampleNew() {
	dev := host.New()
	defer dev.Close()

	image, _ := volume.New(volume.Shape{3, 3, 3})
	image.Fill(1)
	k, _ := kernel.Ones(volume.Shape{3, 3, 3})

	s, err := conv.New(dev, conv.WithStaging(conv.Tiled), conv.WithAddressing(conv.Image), conv.WithBoundary(conv.BoundaryZero))
	if err != nil {
		fmt.Println(err)
		return
	}
	out, err := s.Convolve(context.Background(), image, k)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(s.Name(), out.Shape())
	fmt.Println("center:", out.At(1, 1, 1))
	fmt.Println("edge:  ", out.At(1, 1, 0))
	fmt.Println("corner:", out.At(0, 0, 0))
	// Output:
	// tiled-image 3x3x3
	// center: 27
	// edge:   18
	// corner: 8
}

func ExampleConvolveDirectBuffer() {
	dev := host.New()
	defer dev.Close()

	// A 1x1x3 image padded to 1x1x5 for a 1x1x3 kernel.
	padded := []float32{0, 1, 2, 3, 0}
	out, err := conv.ConvolveDirectBuffer(context.Background(), dev,
		padded, []int{1, 1, 5}, []float32{1, 0, -1}, []int{1, 1, 3})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out)
	// Output: [0 -2 -2 2 0]
}

func ExampleBatch_Convolve() {
	k, _ := kernel.Identity(volume.Shape{1, 1, 3})
	ins := make([]*volume.Volume, 3)
	for i := range ins {
		ins[i], _ = volume.New(volume.Shape{1, 1, 4})
		ins[i].Fill(float32(i))
	}

	b := conv.NewBatch(conv.NewReference(conv.WithBoundary(conv.BoundaryZero)), conv.WithWorkers(2))
	outs, err := b.Convolve(context.Background(), ins, k)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, out := range outs {
		fmt.Println(out.Data())
	}
	// Output:
	// [0 0 0 0]
	// [1 1 1 1]
	// [2 2 2 2]
}
