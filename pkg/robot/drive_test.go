package robot

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

type testPins struct {
	leftPWM, leftDir, rightPWM, rightDir *gpiotest.Pin
}

func newTestDrive(rightInvert bool) (*GPIODrive, testPins) {
	p := testPins{
		leftPWM:  &gpiotest.Pin{N: "GPIO17"},
		leftDir:  &gpiotest.Pin{N: "GPIO18"},
		rightPWM: &gpiotest.Pin{N: "GPIO22"},
		rightDir: &gpiotest.Pin{N: "GPIO23"},
	}
	d := &GPIODrive{
		left:  &motor{name: LeftMotor, pwm: p.leftPWM, dir: p.leftDir},
		right: &motor{name: RightMotor, pwm: p.rightPWM, dir: p.rightDir, invert: rightInvert},
		freq:  physic.KiloHertz,
	}
	return d, p
}

func TestGPIODrive_Directions(t *testing.T) {
	tests := []struct {
		name              string
		run               func(d *GPIODrive) error
		leftDir, rightDir gpio.Level
	}{
		{"forward", func(d *GPIODrive) error { return d.Forward(50) }, gpio.High, gpio.High},
		{"backward", func(d *GPIODrive) error { return d.Backward(50) }, gpio.Low, gpio.Low},
		{"left", func(d *GPIODrive) error { return d.TurnLeft(50) }, gpio.Low, gpio.High},
		{"right", func(d *GPIODrive) error { return d.TurnRight(50) }, gpio.High, gpio.Low},
	}

	for _, tt := range tests {
		d, p := newTestDrive(false)
		if err := tt.run(d); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if p.leftDir.L != tt.leftDir || p.rightDir.L != tt.rightDir {
			t.Errorf("%s: dir = (%v, %v), want (%v, %v)", tt.name, p.leftDir.L, p.rightDir.L, tt.leftDir, tt.rightDir)
		}
		want := gpio.DutyMax / 2
		if p.leftPWM.D != want || p.rightPWM.D != want {
			t.Errorf("%s: duty = (%v, %v), want %v", tt.name, p.leftPWM.D, p.rightPWM.D, want)
		}
		if p.leftPWM.F != physic.KiloHertz {
			t.Errorf("%s: frequency = %v, want 1kHz", tt.name, p.leftPWM.F)
		}
	}
}

func TestGPIODrive_InvertedMotor(t *testing.T) {
	d, p := newTestDrive(true)
	if err := d.Forward(100); err != nil {
		t.Fatal(err)
	}
	if p.leftDir.L != gpio.High {
		t.Errorf("left dir = %v, want High", p.leftDir.L)
	}
	if p.rightDir.L != gpio.Low {
		t.Errorf("inverted right dir = %v, want Low", p.rightDir.L)
	}
	if p.rightPWM.D != gpio.DutyMax {
		t.Errorf("duty at 100%% = %v, want %v", p.rightPWM.D, gpio.DutyMax)
	}
}

func TestGPIODrive_ClampsSpeed(t *testing.T) {
	d, p := newTestDrive(false)
	if err := d.Forward(250); err != nil {
		t.Fatal(err)
	}
	if p.leftPWM.D != gpio.DutyMax {
		t.Errorf("duty = %v, want %v", p.leftPWM.D, gpio.DutyMax)
	}
}

func TestGPIODrive_Stop(t *testing.T) {
	d, p := newTestDrive(false)
	if err := d.Forward(80); err != nil {
		t.Fatal(err)
	}
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	for _, pin := range []*gpiotest.Pin{p.leftPWM, p.leftDir, p.rightPWM, p.rightDir} {
		if pin.L != gpio.Low {
			t.Errorf("%s = %v after stop, want Low", pin.N, pin.L)
		}
	}
}

type recordingDrive struct {
	calls []string
}

func (r *recordingDrive) Forward(speed int) error { r.calls = append(r.calls, "forward"); return nil }
func (r *recordingDrive) Backward(speed int) error { r.calls = append(r.calls, "backward"); return nil }
func (r *recordingDrive) TurnLeft(speed int) error { r.calls = append(r.calls, "left"); return nil }
func (r *recordingDrive) TurnRight(speed int) error { r.calls = append(r.calls, "right"); return nil }
func (r *recordingDrive) Stop() error { r.calls = append(r.calls, "stop"); return nil }

func TestApply(t *testing.T) {
	d := &recordingDrive{}
	for _, cmd := range []Command{CommandForward, CommandBackward, CommandLeft, CommandRight, CommandStop} {
		if err := Apply(d, cmd, 40); err != nil {
			t.Fatalf("Apply(%s): %v", cmd, err)
		}
	}
	want := []string{"forward", "backward", "left", "right", "stop"}
	for i, c := range want {
		if d.calls[i] != c {
			t.Errorf("call %d = %s, want %s", i, d.calls[i], c)
		}
	}

	if err := Apply(d, Command("dance"), 40); err == nil {
		t.Error("Apply with unknown command should fail")
	}
}

func TestCommand_IsMotion(t *testing.T) {
	if CommandStop.IsMotion() {
		t.Error("stop should not be a motion command")
	}
	if !CommandLeft.IsMotion() {
		t.Error("left should be a motion command")
	}
}
