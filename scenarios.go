package vqe

// Scenario is a named Hamiltonian in row major order.
type Scenario struct {
	Name        string
	Hamiltonian []float64
}

// Scenarios are two random real symmetric Hamiltonians whose ground state the ansatz can reach.
var Scenarios = []Scenario{
	{
		Name: "scenario1",
		Hamiltonian: []float64{
			0.863327072347624, 0.0167108057202516, 0.07991447085492759, 0.0854049026262154,
			0.0167108057202516, 0.8237963773906136, -0.07695947154193797, 0.03131548733285282,
			0.07991447085492759, -0.07695947154193795, 0.8355417021014687, -0.11345916130631205,
			0.08540490262621539, 0.03131548733285283, -0.11345916130631205, 0.758156886827099,
		},
	},
	{
		Name: "scenario2",
		Hamiltonian: []float64{
			0.32158897156285354, -0.20689268438270836, 0.12366748295758379, -0.11737425017261123,
			-0.20689268438270836, 0.7747346055276305, -0.05159966365446514, 0.08215539696259792,
			0.12366748295758379, -0.05159966365446514, 0.5769050487087416, 0.3853362904758938,
			-0.11737425017261123, 0.08215539696259792, 0.3853362904758938, 0.3986256655167206,
		},
	},
}
