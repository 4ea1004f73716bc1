package ballistics

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

// Params are the gun-level inputs of the reference model.
type Params struct {
	GaugeMM     float64
	BarrelCount int
	// Base is the catalogue index of the base module, or -1 for none.
	Base                 int
	TestIntervalMinutes  float64
	EnginePowerPerVolume float64
	EnginePowerPerCost   float64
	StoragePerVolume     float64
	StoragePerCost       float64
}

// damage per unit of payload at gauge multiplier 1
var payloadScale = map[models.DamageType]float64{
	models.DamageEMP:             1500,
	models.DamageFlaK:            3000,
	models.DamageFrag:            1000,
	models.DamageHE:              3000,
	models.DamageHEAT:            1200,
	models.DamageIncendiary:      2500,
	models.DamageMunitionDefense: 1,
	models.DamageSmoke:           1250,
}

const (
	velocityScale   = 12.0
	rangePerSpeed   = 3.0
	apScale         = 0.0175
	kineticScale    = 3000.0
	gpRecoilPerUnit = 2500.0
	drawPerModule   = 12500.0
	firingVolume    = 10.0
	firingCost      = 200.0
)

// Reference is a simplified performance model over a module catalogue. It keeps
// the qualitative shape the optimizer relies on: kinetic damage grows with the
// square root of draw while engine volume and cost grow linearly.
type Reference struct {
	p        Params
	cat      *catalogue.Catalogue
	gaugeMul float64
}

// NewReference validates params against the catalogue.
func NewReference(cat *catalogue.Catalogue, p Params) (*Reference, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalogue is required")
	}
	if p.GaugeMM <= 0 {
		return nil, fmt.Errorf("gauge must be positive, got %v", p.GaugeMM)
	}
	if p.Base >= cat.Len() {
		return nil, fmt.Errorf("base module index %d out of range", p.Base)
	}
	if p.BarrelCount < 1 {
		p.BarrelCount = 1
	}
	if p.TestIntervalMinutes <= 0 {
		p.TestIntervalMinutes = 10
	}
	if p.EnginePowerPerVolume <= 0 {
		p.EnginePowerPerVolume = 40
	}
	if p.EnginePowerPerCost <= 0 {
		p.EnginePowerPerCost = 2
	}
	if p.StoragePerVolume <= 0 {
		p.StoragePerVolume = 500
	}
	if p.StoragePerCost <= 0 {
		p.StoragePerCost = 250
	}
	return &Reference{p: p, cat: cat, gaugeMul: GaugeMultiplier(p.GaugeMM)}, nil
}

// shape collects the draw-independent figures derived from the modules.
type shape struct {
	projectileLength float64
	totalLength      float64
	effModules       float64
	velocityMod      float64
	kineticMod       float64
	apMod            float64
	accuracyMod      float64
	payload          map[models.DamageType]float64
	gpRecoil         float64
}

func (r *Reference) shape(cfg models.Configuration) (shape, error) {
	if cfg.Head < 0 || cfg.Head >= r.cat.Len() {
		return shape{}, fmt.Errorf("head index %d out of range", cfg.Head)
	}
	if len(cfg.BodyCounts) > r.cat.Len() {
		return shape{}, fmt.Errorf("configuration has %d body slots for %d modules", len(cfg.BodyCounts), r.cat.Len())
	}

	g := r.p.GaugeMM
	head := r.cat.Module(cfg.Head)
	s := shape{
		projectileLength: head.LengthMM(g),
		payload:          make(map[models.DamageType]float64),
		accuracyMod:      head.AccuracyMod,
	}
	for dt, v := range head.Payload {
		s.payload[dt] += v
	}

	var bodies, velSum, kinSum, apSum float64
	for i, n := range cfg.BodyCounts {
		if n == 0 {
			continue
		}
		m := r.cat.Module(i)
		count := float64(n)
		s.projectileLength += count * m.LengthMM(g)
		bodies += count
		velSum += count * m.VelocityMod
		kinSum += count * m.KineticMod
		apSum += count * m.APMod
		for dt, v := range m.Payload {
			s.payload[dt] += count * v
		}
	}
	s.velocityMod, s.kineticMod, s.apMod = head.VelocityMod, head.KineticMod, head.APMod
	if bodies > 0 {
		s.velocityMod *= velSum / bodies
		s.kineticMod *= kinSum / bodies
		s.apMod *= apSum / bodies
	}
	if r.p.Base >= 0 {
		base := r.cat.Module(r.p.Base)
		s.projectileLength += base.LengthMM(g)
		s.accuracyMod *= base.AccuracyMod
	}

	s.effModules = s.projectileLength / g
	s.totalLength = s.projectileLength + (cfg.FineCasingCount()+float64(cfg.CoarseCasing))*g
	s.gpRecoil = cfg.FineCasingCount() * gpRecoilPerUnit * r.gaugeMul
	return s, nil
}

func (r *Reference) StaticBounds(cfg models.Configuration, q BoundsQuery) (StaticBounds, error) {
	s, err := r.shape(cfg)
	if err != nil {
		return StaticBounds{}, err
	}
	b := StaticBounds{
		TotalLength:         s.totalLength,
		ProjectileLength:    s.projectileLength,
		GPRecoil:            s.gpRecoil,
		MaxDraw:             drawPerModule * r.gaugeMul * (s.effModules + 0.5*float64(cfg.CoarseCasing)),
		MaxProjectileLength: math.Inf(1),
		InaccuracyDrawCap:   math.Inf(1),
	}
	if q.BarrelLengthMM > 0 && q.MaxInaccuracy > 0 {
		b.MaxProjectileLength = q.BarrelLengthMM * q.MaxInaccuracy * s.accuracyMod / 0.9
		calibers := q.BarrelLengthMM / r.p.GaugeMM
		b.InaccuracyDrawCap = calibers * 4000 * r.gaugeMul * q.MaxInaccuracy / 0.3
	}
	return b, nil
}

func (r *Reference) velocity(s shape, draw float64) float64 {
	return s.velocityMod * math.Sqrt((draw+s.gpRecoil)*velocityScale/(r.gaugeMul*s.effModules))
}

func (r *Reference) MinDraw(cfg models.Configuration, minVelocity, minRange float64) (float64, error) {
	s, err := r.shape(cfg)
	if err != nil {
		return 0, err
	}
	v := max(minVelocity, minRange/rangePerSpeed)
	if v <= 0 {
		return 0, nil
	}
	ratio := v / s.velocityMod
	draw := ratio*ratio*r.gaugeMul*s.effModules/velocityScale - s.gpRecoil
	return max(draw, 0), nil
}

func (r *Reference) reloadTime(cfg models.Configuration, s shape) float64 {
	base := 2 + 4*math.Pow(s.totalLength/1000, 1.35)
	switch cfg.Feed {
	case models.FeedBelt:
		return base * 0.35
	case models.FeedDIF:
		return base * 0.5
	default:
		return base
	}
}

func (r *Reference) loaderVolume(cfg models.Configuration, s shape) float64 {
	switch cfg.Feed {
	case models.FeedBelt:
		return 1
	case models.FeedDIF:
		return 0
	default:
		return math.Ceil(s.totalLength/1000) + 1
	}
}

func (r *Reference) Evaluate(cfg models.Configuration, draw float64, dt models.DamageType, target Target) (models.Metrics, error) {
	s, err := r.shape(cfg)
	if err != nil {
		return models.Metrics{}, err
	}
	if draw < 0 {
		return models.Metrics{}, fmt.Errorf("draw must be non-negative, got %v", draw)
	}

	v := r.velocity(s, draw)
	angle := math.Cos(target.ImpactAngleDeg * math.Pi / 180)
	ap := v * s.apMod * apScale * angle
	penetrates := target.AC <= 0 || ap >= target.AC

	damage := make(map[models.DamageType]float64, len(models.DamageTypes))
	kd := kineticScale * r.gaugeMul * s.effModules * s.kineticMod * v / 500
	if target.AC > 0 {
		kd *= utils.ClampFloat64(ap/target.AC, 0, 1)
	}
	damage[models.DamageKinetic] = kd
	for t, scale := range payloadScale {
		damage[t] = s.payload[t] * scale * r.gaugeMul
	}
	damage[models.DamageDisruptor] = utils.ClampFloat64(s.payload[models.DamageDisruptor]*(1+0.1*float64(cfg.BodyTotal())), 0, 1)
	if penetrates {
		damage[models.DamagePendepth] = damage[models.DamageHE] + damage[models.DamageFlaK] + damage[models.DamageFrag]
	} else {
		damage[models.DamagePendepth] = 0
	}

	reload := r.reloadTime(cfg, s)
	barrels := float64(r.p.BarrelCount)
	dps := damage[dt] * barrels / reload

	shotsPerInterval := r.p.TestIntervalMinutes * 60 / reload * barrels
	materials := shotsPerInterval * r.gaugeMul * (s.effModules + cfg.FineCasingCount() + float64(cfg.CoarseCasing)) * 5
	power := (draw / reload) * barrels

	volume := firingVolume + r.loaderVolume(cfg, s) + materials/r.p.StoragePerVolume + power/r.p.EnginePowerPerVolume
	cost := firingCost + 20*r.loaderVolume(cfg, s) + materials/r.p.StoragePerCost + power/r.p.EnginePowerPerCost

	return models.Metrics{
		TotalLength:      s.totalLength,
		ProjectileLength: s.projectileLength,
		Velocity:         v,
		EffectiveRange:   v * rangePerSpeed,
		Recoil:           draw + s.gpRecoil,
		ReloadTime:       reload,
		Damage:           damage,
		DPS:              dps,
		Volume:           volume,
		Cost:             cost,
		DPSPerVolume:     dps / volume,
		DPSPerCost:       dps / cost,
	}, nil
}

var _ Model = (*Reference)(nil)
